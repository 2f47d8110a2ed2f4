package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"spese-api/internal/core"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

const dateOnlyLayout = "2006-01-02"

// Timestamp layouts accepted for start_date/end_date, most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04",
}

// decodeJSON reads one JSON document into dst. Syntax problems are 400;
// well-formed JSON of the wrong shape is a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	err := dec.Decode(dst)
	if err == nil {
		return nil
	}

	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		sizeErr   *http.MaxBytesError
	)
	switch {
	case errors.Is(err, io.EOF):
		return &core.ValidationError{Field: "body", Message: "request body is required"}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return badRequest("Malformed JSON body")
	case errors.As(err, &sizeErr):
		return &requestError{status: http.StatusRequestEntityTooLarge, message: "Request body too large"}
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return &core.ValidationError{Field: field, Message: "invalid type, expected " + typeErr.Type.String()}
	default:
		return &core.ValidationError{Field: "body", Message: err.Error()}
	}
}

// pathID reads a positive integer route parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return id, nil
}

// ParsePage reads skip/limit. Absent values take defaults; Clamp bounds
// the rest.
func ParsePage(query url.Values) (core.Page, error) {
	var page core.Page
	var err error
	if page.Skip, err = optionalInt(query, "skip"); err != nil {
		return core.Page{}, err
	}
	if page.Limit, err = optionalInt(query, "limit"); err != nil {
		return core.Page{}, err
	}
	return page.Clamp(), nil
}

// MonthParams holds the year/month of a monthly report.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams requires both year and month.
func ParseMonthParams(query url.Values) (MonthParams, error) {
	year, err := requiredInt(query, "year")
	if err != nil {
		return MonthParams{}, err
	}
	month, err := requiredInt(query, "month")
	if err != nil {
		return MonthParams{}, err
	}
	return MonthParams{Year: year, Month: month}, nil
}

// ParseYear requires the year parameter.
func ParseYear(query url.Values) (int, error) {
	return requiredInt(query, "year")
}

// ParseExportFilter reads start_date, end_date and categories. A date-only
// end_date covers that whole day.
func ParseExportFilter(query url.Values) (core.ExportFilter, error) {
	var f core.ExportFilter

	if v := strings.TrimSpace(query.Get("start_date")); v != "" {
		t, _, err := parseTimestamp(v)
		if err != nil {
			return f, &core.ValidationError{Field: "start_date", Message: "invalid datetime"}
		}
		f.Start = &t
	}

	if v := strings.TrimSpace(query.Get("end_date")); v != "" {
		t, dateOnly, err := parseTimestamp(v)
		if err != nil {
			return f, &core.ValidationError{Field: "end_date", Message: "invalid datetime"}
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Microsecond)
		}
		f.End = &t
	}

	if v := strings.TrimSpace(query.Get("categories")); v != "" {
		ids, err := parseCategoryIDs(v)
		if err != nil {
			return f, err
		}
		f.CategoryIDs = ids
	}

	return f, nil
}

// parseTimestamp accepts a date or a datetime and normalizes to UTC.
// Naive datetimes are read as UTC.
func parseTimestamp(s string) (time.Time, bool, error) {
	if t, err := time.Parse(dateOnlyLayout, s); err == nil {
		return t, true, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), false, nil
		}
	}
	return time.Time{}, false, errors.New("unrecognized timestamp")
}

func parseCategoryIDs(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, badRequest("Invalid categories format")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func optionalInt(query url.Values, name string) (int, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &core.ValidationError{Field: name, Message: "must be an integer"}
	}
	return n, nil
}

func requiredInt(query url.Values, name string) (int, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return 0, &core.ValidationError{Field: name, Message: "field required"}
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &core.ValidationError{Field: name, Message: "must be an integer"}
	}
	return n, nil
}
