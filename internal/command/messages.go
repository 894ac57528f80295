package command

const (
	messageGenericApology = ":warning: **Sorry, something went wrong. Please try again later.**"
	messageUnknownCommand = ":warning: **Unknown command.**"
	messageGuildOnly      = ":warning: **This command can only be used in a server.**"
	messageCooldown       = ":hourglass: **Please wait a moment before using another command.**"
	messageWorking        = ":hourglass_flowing_sand: Working on it..."

	messageNoStreamsFormat       = "No streams have been recorded for <@%s> yet."
	messageNoLeaderboard         = "No streams have been recorded in this server yet."
	messageInvalidTimezoneFormat = ":warning: **%q is not a known IANA timezone** (for example `Asia/Tokyo` or `Europe/Berlin`)."
	messageInvalidConfig         = ":warning: **That configuration is not valid.**"
	messageConfigSaved           = ":white_check_mark: **Report settings saved.**"
	messageReportSentHintFormat  = "-# All pages were posted to <#%s>."
	messageReportNoChannelHint   = "-# Set a report channel with /golive-config to post reports automatically."
)
