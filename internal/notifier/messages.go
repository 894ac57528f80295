package notifier

import (
	"fmt"
	"time"
)

const (
	colorLive      = 0xE03E3E
	colorEnded     = 0x5865F2
	colorReport    = 0x3BA55C
	colorNoReports = 0x99AAB5

	messageStartFormat       = ":red_circle: **%s went live in** <#%s>"
	messageEndFormat         = ":stop_button: **%s ended the stream in** <#%s> after %s"
	messageInterruptedFormat = ":warning: **%s's stream in** <#%s> **was closed after a restart.**"
	messageInterruptedHint   = "-# The stream was not seen live again, so its time is not counted."

	reportHourlyTitle = ":bar_chart: **Hourly go-live report**"
	reportDailyTitle  = ":calendar: **Daily go-live report**"
	reportNoActivity  = "No one went live in this period."
	reportIncomplete  = " (still live or interrupted)"
)

func startMessage(username, channelID string) string {
	return fmt.Sprintf(messageStartFormat, username, channelID)
}

func endMessage(username, channelID string, minutes int64) string {
	return fmt.Sprintf(messageEndFormat, username, channelID, formatMinutes(minutes))
}

func interruptedMessage(username, channelID string) string {
	return fmt.Sprintf(messageInterruptedFormat, username, channelID) + "\n" + messageInterruptedHint
}

func formatMinutes(minutes int64) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

// FormatSeconds renders a clipped duration as "1h 05m 09s".
func FormatSeconds(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	h := int64(d / time.Hour)
	m := int64(d % time.Hour / time.Minute)
	s := int64(d % time.Minute / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
