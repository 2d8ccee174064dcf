package shared_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreria-lumen/backoffice/internal/shared"
)

type failingSink struct {
	calls int
	last  shared.AuditRecord
}

func (s *failingSink) Record(_ context.Context, rec shared.AuditRecord) error {
	s.calls++
	s.last = rec
	return errors.New("disk full")
}

func TestAuditorLenientSwallowsFailure(t *testing.T) {
	sink := &failingSink{}
	auditor := shared.NewAuditor(sink, false, nil)

	err := auditor.Record(context.Background(), shared.AuditRecord{Entity: "Sale", EntityID: "1", Action: "CREATE"})
	require.NoError(t, err)
	assert.Equal(t, 1, sink.calls)
	assert.False(t, sink.last.At.IsZero())
}

func TestAuditorStrictPropagatesFailure(t *testing.T) {
	auditor := shared.NewAuditor(&failingSink{}, true, nil)

	err := auditor.Record(context.Background(), shared.AuditRecord{Entity: "Sale", EntityID: "1", Action: "CREATE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Sale/1 CREATE")
}
