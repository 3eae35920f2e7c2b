package eventlog

import (
	"time"

	"flowlens/internal/jira"
)

func mustParse(s string) time.Time {
	t, err := jira.ParseTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

func hoursDur(h int) time.Duration {
	return time.Duration(h) * time.Hour
}
