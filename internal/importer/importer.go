package importer

import (
	"strings"

	"gigbook/internal/domain/gig"
)

// Row is one raw record handed over by the external file parser.
type Row struct {
	Date     string `json:"date"`
	BandName string `json:"band_name"`
	Title    string `json:"title"`
}

// Reject records a whole row that failed fast, with the reason.
type Reject struct {
	Index int    `json:"index"`
	Row   Row    `json:"row"`
	Cause string `json:"cause"`
}

type Result struct {
	Inputs   []gig.CreateInput
	Rejected []Reject
}

// Prepare validates raw rows into gig create inputs. Dates are normalized to
// the canonical zero-padded form, trying day/month/year slash order before
// ISO; a row whose date cannot be parsed is rejected whole. Imported gigs
// start PENDING with no amount set.
func Prepare(rows []Row) Result {
	var result Result
	for i, row := range rows {
		date, err := gig.ParseFlexibleDate(row.Date)
		if err != nil {
			result.Rejected = append(result.Rejected, Reject{Index: i, Row: row, Cause: err.Error()})
			continue
		}

		title := strings.TrimSpace(row.Title)
		if title == "" {
			title = strings.TrimSpace(row.BandName)
		}
		if title == "" {
			result.Rejected = append(result.Rejected, Reject{Index: i, Row: row, Cause: gig.ErrTitleRequired.Error()})
			continue
		}

		result.Inputs = append(result.Inputs, gig.CreateInput{
			Title:    title,
			Date:     date,
			Status:   gig.StatusPending,
			BandName: strings.TrimSpace(row.BandName),
		})
	}
	return result
}
