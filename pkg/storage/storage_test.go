package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticReader struct {
	res   LookupResult
	err   error
	calls int
}

func (s *staticReader) Get(_ context.Context, _ string) (LookupResult, error) {
	s.calls++
	return s.res, s.err
}

func (s *staticReader) Close() {}

func TestLookupResult(t *testing.T) {
	t.Run("zero_value_is_not_found", func(t *testing.T) {
		var res LookupResult
		require.False(t, res.IsFound())
		doc, ok := res.Document()
		require.False(t, ok)
		require.Nil(t, doc)
		require.Equal(t, "NotFound", res.String())
	})

	t.Run("found_with_nil_document_is_empty_document", func(t *testing.T) {
		res := Found(nil)
		require.True(t, res.IsFound())
		doc, ok := res.Document()
		require.True(t, ok)
		require.Equal(t, 0, doc.Len())
	})

	t.Run("json", func(t *testing.T) {
		doc := NewDocument()
		doc.Set("content", "a")

		out, err := json.Marshal(map[string]LookupResult{"1": Found(doc), "2": NotFound()})
		require.NoError(t, err)
		require.JSONEq(t, `{"1":{"content":"a"},"2":null}`, string(out))
	})
}

func TestSuccessor(t *testing.T) {
	ctx := context.Background()
	doc := NewDocument()
	doc.Set("field", "value")

	t.Run("no_next_never_delegates", func(t *testing.T) {
		s := NewSuccessor(nil, FallbackOnFault)
		res, err := s.Resolve(ctx, "1", NotFound(), nil)
		require.NoError(t, err)
		require.False(t, res.IsFound())
	})

	t.Run("found_is_returned_without_delegation", func(t *testing.T) {
		next := &staticReader{res: NotFound()}
		s := NewSuccessor(next, FallbackOnNotFound)
		res, err := s.Resolve(ctx, "1", Found(doc), nil)
		require.NoError(t, err)
		require.True(t, res.IsFound())
		require.Zero(t, next.calls)
	})

	t.Run("not_found_delegates", func(t *testing.T) {
		next := &staticReader{res: Found(doc)}
		s := NewSuccessor(next, FallbackOnNotFound)
		res, err := s.Resolve(ctx, "1", NotFound(), nil)
		require.NoError(t, err)
		require.Equal(t, Found(doc), res)
		require.Equal(t, 1, next.calls)
	})

	t.Run("fault_propagates_by_default", func(t *testing.T) {
		next := &staticReader{res: Found(doc)}
		s := NewSuccessor(next, FallbackOnNotFound)
		fault := ConnectionFaultError("test", errors.New("boom"))
		_, err := s.Resolve(ctx, "1", NotFound(), fault)
		require.ErrorIs(t, err, ErrConnectionFault)
		require.Zero(t, next.calls)
	})

	t.Run("fault_delegates_with_fault_policy", func(t *testing.T) {
		next := &staticReader{res: Found(doc)}
		s := NewSuccessor(next, FallbackOnFault)
		fault := ConnectionFaultError("test", errors.New("boom"))
		res, err := s.Resolve(ctx, "1", NotFound(), fault)
		require.NoError(t, err)
		require.True(t, res.IsFound())
		require.Equal(t, 1, next.calls)
	})

	t.Run("configuration_error_never_delegates", func(t *testing.T) {
		next := &staticReader{res: Found(doc)}
		s := NewSuccessor(next, FallbackOnFault)
		_, err := s.Resolve(ctx, "1", NotFound(), ConfigurationError("not connected"))
		require.ErrorIs(t, err, ErrConfiguration)
		require.Zero(t, next.calls)
	})
}

func TestErrors(t *testing.T) {
	base := errors.New("dial tcp: refused")

	err := ConnectionFaultError("redis", base)
	require.ErrorIs(t, err, ErrConnectionFault)
	require.ErrorIs(t, err, base)
	require.True(t, IsConnectionFault(err))
	require.Equal(t, "connection fault: redis: dial tcp: refused", err.Error())

	require.Equal(t, err, ConnectionFaultError("other", err))
	require.NoError(t, ConnectionFaultError("redis", nil))

	cfgErr := ConfigurationError("missing %s", "table")
	require.ErrorIs(t, cfgErr, ErrConfiguration)
	require.EqualError(t, cfgErr, "invalid configuration: missing table")
	require.False(t, IsConnectionFault(cfgErr))
}

func TestFallbackPolicyString(t *testing.T) {
	require.Equal(t, "not_found", FallbackOnNotFound.String())
	require.Equal(t, "fault", FallbackOnFault.String())
	require.Equal(t, "unknown", FallbackPolicy(42).String())
}
