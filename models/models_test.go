package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldKey(t *testing.T) {
	for _, k := range FieldKeys {
		got, err := ParseFieldKey(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseFieldKey("homework")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestReportFieldsGetSet(t *testing.T) {
	var r ReportFields
	for i, k := range FieldKeys {
		require.NoError(t, r.Set(k, string(rune('a'+i))))
	}
	for i, k := range FieldKeys {
		v, err := r.Get(k)
		require.NoError(t, err)
		assert.Equal(t, string(rune('a'+i)), v, "field %s", k)
	}
	assert.Equal(t, "a", r.Date)
	assert.Equal(t, "o", r.Notes)

	assert.ErrorIs(t, r.Set("bogus", "x"), ErrUnknownField)
	_, err := r.Get("bogus")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestOverrideApply(t *testing.T) {
	base := ReportFields{Teacher: "신기정T", Subject: "수학", Progress: "1단원"}
	o := Override{FieldProgress: "2단원", "bogus": "ignored"}

	got := o.Apply(base)
	assert.Equal(t, "2단원", got.Progress)
	assert.Equal(t, "신기정T", got.Teacher)
	assert.Equal(t, "1단원", base.Progress, "base must not change")

	var none Override
	assert.Equal(t, base, none.Apply(base))
}

func TestOverrideMapCloneIsDeep(t *testing.T) {
	m := OverrideMap{"김하늘": {FieldNotes: "a"}}
	c := m.Clone()
	c["김하늘"][FieldNotes] = "b"
	c["이서준"] = Override{}

	assert.Equal(t, "a", m["김하늘"][FieldNotes])
	assert.NotContains(t, m, "이서준")
}

func TestOverrideMapJSONUsesFieldKeys(t *testing.T) {
	raw := `{"김하늘":{"progress":"분수","hwLast":"o"}}`
	var m OverrideMap
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, "분수", m["김하늘"][FieldProgress])
	assert.Equal(t, "o", m["김하늘"][FieldHWLast])
}

func TestRosterRefs(t *testing.T) {
	r := Roster{
		{Name: "초등 기본반", Students: []RosterStudent{{Name: "a", Grade: "초3"}, {Name: "b", Grade: "초4"}}},
		{Name: "중1 정규반", Students: []RosterStudent{{Name: "c", Grade: "중1"}}},
	}
	assert.Equal(t, []StudentRef{
		{Name: "a", Grade: "초3", Group: "초등 기본반"},
		{Name: "b", Grade: "초4", Group: "초등 기본반"},
		{Name: "c", Grade: "중1", Group: "중1 정규반"},
	}, r.Refs())
}
