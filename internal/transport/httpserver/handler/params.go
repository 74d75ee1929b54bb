package handler

import (
	"net/http"
	"strconv"
	"strings"

	"gigbook/internal/domain/agenda"
)

// bandIDParam reads the optional band scope from the query string. Absent or
// the literal "null" means personal.
func bandIDParam(r *http.Request) *string {
	value := strings.TrimSpace(r.URL.Query().Get("band_id"))
	if value == "" || value == "null" {
		return nil
	}
	return &value
}

func boolParam(r *http.Request, name string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(name)))
	return err == nil && parsed
}

func filterParams(r *http.Request) agenda.Filter {
	q := r.URL.Query()
	status := agenda.StatusFilter(strings.ToLower(strings.TrimSpace(q.Get("status"))))
	switch status {
	case agenda.StatusPending, agenda.StatusPaid:
	default:
		status = agenda.StatusAll
	}
	return agenda.Filter{
		From:   strings.TrimSpace(q.Get("from")),
		To:     strings.TrimSpace(q.Get("to")),
		On:     strings.TrimSpace(q.Get("on")),
		Status: status,
		Query:  strings.TrimSpace(q.Get("q")),
	}
}
