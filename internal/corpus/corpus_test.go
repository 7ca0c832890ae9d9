package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() CaseRecord {
	return CaseRecord{
		CaseID:              "A1",
		VehicleASituation:   "직진 신호에 교차로 진입",
		VehicleBSituation:   "맞은편에서 좌회전",
		AccidentDescription: "교차로 내 충돌",
		FaultRatio:          "30:70",
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validRecord().Validate())

	cases := []struct {
		name   string
		mutate func(*CaseRecord)
	}{
		{"missing case_id", func(r *CaseRecord) { r.CaseID = "" }},
		{"missing vehicle A", func(r *CaseRecord) { r.VehicleASituation = "" }},
		{"missing vehicle B", func(r *CaseRecord) { r.VehicleBSituation = "" }},
		{"missing description", func(r *CaseRecord) { r.AccidentDescription = "" }},
		{"missing fault ratio", func(r *CaseRecord) { r.FaultRatio = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validRecord()
			tc.mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingField)
		})
	}
}

func TestLoadSkipsInvalidRecords(t *testing.T) {
	content := `[
		{"case_id": "A1", "vehicle_A_situation": "직진", "vehicle_B_situation": "좌회전",
		 "accident_description": "교차로 충돌", "fault_ratio": "30:70"},
		{"case_id": "A2", "vehicle_A_situation": "후진"},
		{"case_id": "A3", "vehicle_A_situation": "직진", "vehicle_B_situation": "차선변경",
		 "accident_description": "측면 접촉", "fault_ratio": "40:60"}
	]`
	path := filepath.Join(t.TempDir(), "cases.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	records, err := Load(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A1", records[0].CaseID)
	assert.Equal(t, "A3", records[1].CaseID, "file order must be preserved")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err, "missing file is an error")

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err = Load(path)
	assert.Error(t, err, "unparseable file is an error")
}

func TestNormalizeCanonicalOrder(t *testing.T) {
	n, ok := Normalize(validRecord())
	require.True(t, ok)

	assert.Equal(t, "A1", n.CaseID)
	assert.Equal(t, "30:70", n.FaultRatio)
	assert.Equal(t, "accident_case", n.SourceKind)

	// Sections appear in a fixed order.
	sections := []string{"사고 유형:", "차량 A 상황:", "차량 B 상황:", "사고 설명:", "과실 비율:"}
	pos := -1
	for _, section := range sections {
		idx := strings.Index(n.Text, section)
		require.GreaterOrEqual(t, idx, 0, "section %q missing", section)
		assert.Greater(t, idx, pos, "section %q out of order", section)
		pos = idx
	}
	assert.True(t, strings.HasSuffix(n.Text, "과실 비율: 30:70"))
}

func TestNormalizeDeterministic(t *testing.T) {
	first, ok := Normalize(validRecord())
	require.True(t, ok)
	second, ok := Normalize(validRecord())
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	r := validRecord()
	r.FaultRatio = ""
	_, ok := Normalize(r)
	assert.False(t, ok)
}

func TestNormalizeAllPreservesOrder(t *testing.T) {
	a := validRecord()
	b := validRecord()
	b.CaseID = "B1"
	bad := validRecord()
	bad.VehicleBSituation = ""

	out := NormalizeAll([]CaseRecord{a, bad, b})
	require.Len(t, out, 2)
	assert.Equal(t, "A1", out[0].CaseID)
	assert.Equal(t, "B1", out[1].CaseID)
}
