package sync

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sqlStateErr string

func (e sqlStateErr) Error() string    { return "pg: " + string(e) }
func (e sqlStateErr) SQLState() string { return string(e) }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"nil", nil, Transient},
		{"no code", errors.New("timeout"), Transient},
		{"invalid text representation", &RemoteError{Code: "22P02"}, Fatal},
		{"not null", &RemoteError{Code: "23502"}, Fatal},
		{"foreign key", &RemoteError{Code: "23503"}, Fatal},
		{"unique", &RemoteError{Code: "23505"}, Fatal},
		{"insufficient privilege", &RemoteError{Code: "42501"}, Fatal},
		{"undefined table", &RemoteError{Code: "42P01"}, Transient},
		{"postgrest jwt", &RemoteError{Code: "PGRST301"}, Transient},
		{"empty code", &RemoteError{Code: ""}, Transient},
		{"class prefix too long", &RemoteError{Code: "230001"}, Transient},
		{"wrapped", fmt.Errorf("apply: %w", &RemoteError{Code: "23505"}), Fatal},
		{"driver sqlstate", sqlStateErr("23505"), Fatal},
		{"driver sqlstate transient", sqlStateErr("40001"), Transient},
		{"unsupported op", &UnsupportedOperationError{Op: "X"}, Transient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestRemoteErrorMessage(t *testing.T) {
	err := &RemoteError{Table: "todos", Code: "23503", Message: "violates foreign key"}
	assert.Equal(t, "remote todos: 23503: violates foreign key", err.Error())

	inner := errors.New("bad gateway")
	err = &RemoteError{Table: "lists", Err: inner}
	assert.Equal(t, "remote lists: bad gateway", err.Error())
	assert.ErrorIs(t, err, inner)
}
