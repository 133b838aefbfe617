package logging

// MaskID shortens an account or user identifier for log output, keeping only
// the last four characters. Full identifiers stay out of logs; the suffix is
// enough to correlate with store records during support work.
func MaskID(id string) string {
	const keep = 4
	if id == "" {
		return ""
	}
	if len(id) <= keep {
		return "****"
	}
	return "****" + id[len(id)-keep:]
}
