package report

const PageCapacity = 6

type EntryKind int

const (
	EntryUserHeader EntryKind = iota + 1
	EntrySession
)

// Entry is one line of the linearized report: a user header followed by that
// user's sessions.
type Entry struct {
	Kind    EntryKind
	User    *UserSummary
	Session *SessionLine
}

type Page struct {
	Number     int
	Total      int
	Summary    Summary
	Entries    []Entry
	NoActivity bool
}

func (p Page) SessionEntries() int {
	n := 0
	for _, e := range p.Entries {
		if e.Kind == EntrySession {
			n++
		}
	}
	return n
}

// Pages splits the report at user boundaries. A user block moves to a fresh
// page when it would push a non-empty page past capacity; a block larger than
// capacity is never split. Every page carries the report summary.
func (r *Report) Pages() []Page {
	return paginate(r.Users, r.Summary, PageCapacity)
}

func paginate(users []UserSummary, summary Summary, capacity int) []Page {
	if len(users) == 0 {
		return []Page{{Number: 1, Total: 1, Summary: summary, NoActivity: true}}
	}

	var pages []Page
	current := Page{Summary: summary}
	count := 0
	for i := range users {
		u := &users[i]
		if count > 0 && count+len(u.Sessions) > capacity {
			pages = append(pages, current)
			current = Page{Summary: summary}
			count = 0
		}
		current.Entries = append(current.Entries, Entry{Kind: EntryUserHeader, User: u})
		for j := range u.Sessions {
			current.Entries = append(current.Entries, Entry{Kind: EntrySession, User: u, Session: &u.Sessions[j]})
			count++
		}
	}
	pages = append(pages, current)

	for i := range pages {
		pages[i].Number = i + 1
		pages[i].Total = len(pages)
	}
	return pages
}
