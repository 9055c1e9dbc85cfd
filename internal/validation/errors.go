package validation

import (
	"sort"
	"strings"
)

// Code is a stable identifier of a failed rule.
type Code string

const (
	CodeRequired Code = "required"
	CodeURL      Code = "url"
	CodeMax      Code = "max"
	CodeString   Code = "string"
	CodeInteger  Code = "integer"
	CodeMin      Code = "min"
	CodeExists   Code = "exists"
)

type FieldError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Errors maps a field name to every rule it failed.
type Errors map[string][]FieldError

func (e Errors) add(field string, code Code) {
	e[field] = append(e[field], FieldError{
		Code:    code,
		Message: messages[field][code],
	})
}

func (e Errors) Has(field string) bool {
	return len(e[field]) != 0
}

func (e Errors) HasCode(field string, code Code) bool {
	for _, fe := range e[field] {
		if fe.Code == code {
			return true
		}
	}
	return false
}

func (e Errors) Fields() []string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, field := range e.Fields() {
		for _, fe := range e[field] {
			parts = append(parts, field+": "+fe.Message)
		}
	}
	return strings.Join(parts, "; ")
}
