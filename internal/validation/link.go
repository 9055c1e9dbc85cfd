package validation

import (
	"context"
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
	"github.com/pkg/errors"
)

const (
	FieldURL         = "url"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldIssueID     = "issue_id"
	FieldPosition    = "position"
)

const MaxLength = 255

var messages = map[string]map[Code]string{
	FieldURL: {
		CodeRequired: "URL is required",
		CodeURL:      "Enter a valid URL",
		CodeMax:      "URL must not exceed 255 characters",
	},
	FieldTitle: {
		CodeRequired: "Title is required",
		CodeString:   "Title must be a string",
		CodeMax:      "Title must not exceed 255 characters",
	},
	FieldDescription: {
		CodeString: "Description must be a string",
	},
	FieldIssueID: {
		CodeExists: "The selected issue does not exist",
	},
	FieldPosition: {
		CodeInteger: "Position must be an integer",
		CodeMin:     "Position cannot be negative",
	},
}

// IssueLookup answers whether an issue with the given id exists.
type IssueLookup interface {
	IssueExists(ctx context.Context, id uint64) (bool, error)
}

// Link is a validated set of link fields. The *Set flags tell which
// optional fields were supplied, so that an update leaves the others alone.
type Link struct {
	URL         string
	Title       string
	Description *string
	IssueID     *uint64
	Position    *int

	DescriptionSet bool
	IssueIDSet     bool
	PositionSet    bool
}

type Result struct {
	Link   *Link
	Errors Errors
}

func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

type rule struct {
	tag  string
	code Code
}

type Validator struct {
	validate *validator.Validate
	issues   IssueLookup
}

func New(issues IssueLookup) *Validator {
	validate := validator.New()
	_ = validate.RegisterValidation("weburl", isWebURL)

	return &Validator{
		validate: validate,
		issues:   issues,
	}
}

// isWebURL accepts http(s) and ftp URLs that name a host.
func isWebURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp", "ftps":
	default:
		return false
	}
	return u.Opaque == "" && u.Hostname() != ""
}

// Link checks raw link fields. Malformed input never produces an error,
// only a Result with field errors; the returned error is reserved for a
// failing issue lookup. Owner fields in the input are ignored.
func (v *Validator) Link(ctx context.Context, fields map[string]interface{}) (Result, error) {
	errs := Errors{}
	link := Link{}

	if raw, ok := present(fields, FieldURL); !ok {
		errs.add(FieldURL, CodeRequired)
	} else if s, ok := raw.(string); !ok {
		errs.add(FieldURL, CodeURL)
	} else {
		link.URL = strings.TrimSpace(s)
		v.check(errs, FieldURL, link.URL,
			rule{tag: "required", code: CodeRequired},
			rule{tag: "url,weburl", code: CodeURL},
			rule{tag: "max=" + strconv.Itoa(MaxLength), code: CodeMax},
		)
	}

	if raw, ok := present(fields, FieldTitle); !ok {
		errs.add(FieldTitle, CodeRequired)
	} else if s, ok := raw.(string); !ok {
		errs.add(FieldTitle, CodeString)
	} else {
		link.Title = strings.TrimSpace(s)
		v.check(errs, FieldTitle, link.Title,
			rule{tag: "required", code: CodeRequired},
			rule{tag: "max=" + strconv.Itoa(MaxLength), code: CodeMax},
		)
	}

	if raw, supplied := fields[FieldDescription]; supplied {
		link.DescriptionSet = true
		switch s := raw.(type) {
		case nil:
		case string:
			// blank strings are stored as NULL
			if strings.TrimSpace(s) != "" {
				link.Description = &s
			}
		default:
			errs.add(FieldDescription, CodeString)
		}
	}

	if _, supplied := fields[FieldPosition]; supplied {
		link.PositionSet = true
		if raw, ok := present(fields, FieldPosition); ok {
			n, ok := asInt(raw)
			switch {
			case !ok || n > math.MaxInt32:
				errs.add(FieldPosition, CodeInteger)
			default:
				v.check(errs, FieldPosition, n, rule{tag: "min=0", code: CodeMin})
				if !errs.Has(FieldPosition) {
					pos := int(n)
					link.Position = &pos
				}
			}
		}
	}

	if _, supplied := fields[FieldIssueID]; supplied {
		link.IssueIDSet = true
		if raw, ok := present(fields, FieldIssueID); ok {
			n, ok := asInt(raw)
			if !ok || n <= 0 {
				errs.add(FieldIssueID, CodeExists)
			} else {
				exists, err := v.issues.IssueExists(ctx, uint64(n))
				if err != nil {
					return Result{}, errors.Wrap(err, "issue lookup")
				}
				if !exists {
					errs.add(FieldIssueID, CodeExists)
				} else {
					id := uint64(n)
					link.IssueID = &id
				}
			}
		}
	}

	if len(errs) != 0 {
		return Result{Errors: errs}, nil
	}
	return Result{Link: &link}, nil
}

// check runs every rule and records each failing one.
func (v *Validator) check(errs Errors, field string, value interface{}, rules ...rule) {
	for _, r := range rules {
		if err := v.validate.Var(value, r.tag); err != nil {
			errs.add(field, r.code)
			if r.code == CodeRequired {
				return
			}
		}
	}
}

// present returns the field value unless it is missing, null or a blank string.
func present(fields map[string]interface{}, name string) (interface{}, bool) {
	raw, ok := fields[name]
	if !ok || raw == nil {
		return nil, false
	}
	if s, isString := raw.(string); isString && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return raw, true
}

func asInt(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) || v != math.Trunc(v) || v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}
