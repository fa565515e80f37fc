package evtx

import "strings"

// deriveTags attaches auxiliary category tags from the channel name and
// the event type so downstream scoring and retrieval do not have to know
// event-id semantics.
func deriveTags(eventID int, channel string) []string {
	var tags []string

	if strings.Contains(strings.ToLower(channel), "security") {
		tags = append(tags, "authentication")
	}

	switch eventID {
	case 4624:
		tags = append(tags, "successful_logon")
	case 4625:
		tags = append(tags, "failed_logon")
	case 7045:
		tags = append(tags, "service_install")
	case 4103, 4104:
		tags = append(tags, "script_execution")
	case 4688, 4689:
		tags = append(tags, "process_lifecycle")
	case 4720, 4722, 4725, 4728, 4732, 4735, 4740:
		tags = append(tags, "account_change")
	case 6005, 6006:
		tags = append(tags, "boot_shutdown")
	}

	return tags
}
