package state

import (
	"testing"

	pbsubstreams "github.com/streamingfast/substreams/pb/sf/substreams/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func set(t *testing.T, s *Builder, block, ord uint64, key, value string) {
	t.Helper()

	old, found := s.GetLast(key)
	op := "c"
	if found {
		op = "u"
	}
	require.NoError(t, s.Apply(StateDelta{Op: op, Block: block, Ordinal: ord, Key: key, OldValue: old, NewValue: []byte(value)}))
}

func del(t *testing.T, s *Builder, block, ord uint64, key string) {
	t.Helper()

	old, _ := s.GetLast(key)
	require.NoError(t, s.Apply(StateDelta{Op: "d", Block: block, Ordinal: ord, Key: key, OldValue: old}))
}

func TestStateBuilder(t *testing.T) {
	s := New("balances")
	set(t, s, 10, 0, "1", "val1")
	set(t, s, 10, 1, "1", "val2")
	set(t, s, 10, 3, "1", "val3")

	set(t, s, 11, 0, "1", "val4")
	set(t, s, 11, 1, "1", "val5")
	set(t, s, 11, 3, "1", "val6")
	del(t, s, 11, 4, "1")
	set(t, s, 11, 5, "1", "val7")

	val, found := s.GetFirst("1")
	assert.Equal(t, "val3", string(val))
	assert.True(t, found)

	val, found = s.GetAt(0, "1")
	assert.Equal(t, "val4", string(val))
	assert.True(t, found)

	val, found = s.GetAt(1, "1")
	assert.Equal(t, "val5", string(val))
	assert.True(t, found)

	val, found = s.GetAt(3, "1")
	assert.Equal(t, "val6", string(val))
	assert.True(t, found)

	val, found = s.GetAt(4, "1")
	assert.Nil(t, val)
	assert.False(t, found)

	val, found = s.GetAt(5, "1")
	assert.Equal(t, "val7", string(val))
	assert.True(t, found)

	val, found = s.GetLast("1")
	assert.Equal(t, "val7", string(val))
	assert.True(t, found)

	assert.Equal(t, map[string]string{"1": "val7"}, s.StringMap())
}

func TestStateBuilder_OrderingErrors(t *testing.T) {
	s := New("balances")
	set(t, s, 10, 5, "a", "1")

	assert.Error(t, s.Apply(StateDelta{Op: "u", Block: 10, Ordinal: 2, Key: "a", NewValue: []byte("2")}))
	assert.Error(t, s.Apply(StateDelta{Op: "u", Block: 9, Ordinal: 8, Key: "a", NewValue: []byte("2")}))
	assert.Error(t, s.Apply(StateDelta{Op: "x", Block: 10, Ordinal: 8, Key: "a"}))
}

func TestFromProto(t *testing.T) {
	tests := []struct {
		name        string
		operation   pbsubstreams.StoreDelta_Operation
		expectedOp  string
		expectError bool
	}{
		{name: "create", operation: pbsubstreams.StoreDelta_CREATE, expectedOp: "c"},
		{name: "update", operation: pbsubstreams.StoreDelta_UPDATE, expectedOp: "u"},
		{name: "delete", operation: pbsubstreams.StoreDelta_DELETE, expectedOp: "d"},
		{name: "unset", operation: pbsubstreams.StoreDelta_UNSET, expectError: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			delta, err := FromProto(42, &pbsubstreams.StoreDelta{
				Operation: test.operation,
				Ordinal:   3,
				Key:       "owner:0xabc",
				OldValue:  []byte("old"),
				NewValue:  []byte("new"),
			})
			if test.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, StateDelta{Op: test.expectedOp, Ordinal: 3, Block: 42, Key: "owner:0xabc", OldValue: []byte("old"), NewValue: []byte("new")}, delta)
		})
	}
}
