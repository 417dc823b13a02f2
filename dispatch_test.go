//go:build unit

package kinesis

import (
	"errors"
	"testing"

	kcl "github.com/ODudek/go-kcl/clientlibrary/interfaces"
	"github.com/stretchr/testify/require"

	mocklogger "github.com/mikegirkin/gfc-aws-kinesis/logger/mock"
	"github.com/mikegirkin/gfc-aws-kinesis/serde"
)

func TestNewSyncRun(t *testing.T) {
	t.Parallel()

	t.Run("handler receives converted records in order", func(t *testing.T) {
		t.Parallel()

		var got []string
		run := newSyncRun[string](
			serde.String(), "stream",
			func(shardID string, records []converted[string], _ kcl.IRecordProcessorCheckpointer) error {
				for _, r := range records {
					got = append(got, r.value)
				}
				return nil
			},
			mocklogger.New(),
		)

		in := makeBatch(
			makeRecord("seq-1", "pk", "a"),
			makeRecord("seq-2", "pk", "b"),
			makeRecord("seq-3", "pk", "c"),
		)
		require.NoError(t, run("shard-0001", in, 0))
		require.Equal(t, []string{"a", "b", "c"}, got)
	})

	t.Run("conversion failures are dropped and logged once", func(t *testing.T) {
		t.Parallel()

		d := serde.DeserialiserFunc[string](func(stream string, data []byte) (string, error) {
			if string(data) == "bad" {
				return "", errors.New("unreadable")
			}
			return string(data), nil
		})

		log := mocklogger.New()
		var calls int
		run := newSyncRun[string](
			d, "stream",
			func(shardID string, records []converted[string], _ kcl.IRecordProcessorCheckpointer) error {
				calls++
				require.Len(t, records, 1)
				require.Equal(t, "a", records[0].value)
				return nil
			},
			log,
		)

		in := makeBatch(makeRecord("seq-1", "pk", "a"), makeRecord("seq-2", "pk", "bad"))

		// First attempt logs the failure, a retry of the same batch must not
		// repeat it.
		require.NoError(t, run("shard-0001", in, 0))
		require.NoError(t, run("shard-0001", in, 1))

		require.Equal(t, 2, calls)
		require.Equal(t, 1, log.CountMessage("dropping unconvertible record"))
	})

	t.Run("handler error propagates", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("downstream unavailable")
		run := newSyncRun[string](
			serde.String(), "stream",
			func(shardID string, records []converted[string], _ kcl.IRecordProcessorCheckpointer) error {
				return cause
			},
			mocklogger.New(),
		)

		err := run("shard-0001", makeBatch(makeRecord("seq-1", "pk", "a")), 0)
		require.ErrorIs(t, err, cause)
	})
}

func TestToInternal(t *testing.T) {
	t.Parallel()

	cp := newFakeCheckpointer()
	var gotShard string
	var gotValues []string
	var gotCheckpointer kcl.IRecordProcessorCheckpointer

	handler := toInternal[string](func(shardID string, records []string, checkpointer kcl.IRecordProcessorCheckpointer) error {
		gotShard = shardID
		gotValues = records
		gotCheckpointer = checkpointer
		return nil
	})

	err := handler("shard-0001", []converted[string]{
		{value: "a", raw: makeRecord("seq-1", "pk", "a")},
		{value: "b", raw: makeRecord("seq-2", "pk", "b")},
	}, cp)

	require.NoError(t, err)
	require.Equal(t, "shard-0001", gotShard)
	require.Equal(t, []string{"a", "b"}, gotValues)
	require.Same(t, cp, gotCheckpointer)
}

func TestEachRecord(t *testing.T) {
	t.Parallel()

	t.Run("invokes handler once per record in order", func(t *testing.T) {
		t.Parallel()

		var got []string
		handler := eachRecord[string](func(shardID string, record string) error {
			got = append(got, record)
			return nil
		})

		err := handler("shard-0001", []converted[string]{
			{value: "a"}, {value: "b"}, {value: "c"},
		}, nil)
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b", "c"}, got)
	})

	t.Run("stops at the first error", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("nope")
		var got []string
		handler := eachRecord[string](func(shardID string, record string) error {
			got = append(got, record)
			if record == "b" {
				return cause
			}
			return nil
		})

		err := handler("shard-0001", []converted[string]{
			{value: "a"}, {value: "b"}, {value: "c"},
		}, nil)
		require.ErrorIs(t, err, cause)
		require.Equal(t, []string{"a", "b"}, got)
	})
}
