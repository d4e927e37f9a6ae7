package version

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      string
		alpha     int
		wantError bool
	}{
		{name: "stable", input: "1.4.0", want: "1.4.0", alpha: -1},
		{name: "alpha", input: "1.4.0-alpha2", want: "1.4.0-alpha2", alpha: 2},
		{name: "alpha zero", input: "2.0.3-alpha0", want: "2.0.3-alpha0", alpha: 0},
		{name: "lowercase v prefix", input: "v0.9.1", want: "0.9.1", alpha: -1},
		{name: "tag prefix", input: "V1.2.3-alpha10", want: "1.2.3-alpha10", alpha: 10},
		{name: "surrounding whitespace", input: " 1.0.0\n", want: "1.0.0", alpha: -1},
		{name: "beta marker", input: "1.0.0-beta1", wantError: true},
		{name: "alpha without number", input: "1.0.0-alpha", wantError: true},
		{name: "alpha leading zero", input: "1.0.0-alpha01", wantError: true},
		{name: "build metadata", input: "1.0.0+abc", wantError: true},
		{name: "two components", input: "1.4", wantError: true},
		{name: "garbage", input: "latest", wantError: true},
		{name: "double prefix", input: "vV1.2.3", wantError: true},
		{name: "repeated prefix", input: "VV1.2.3", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(tt.input)
			if tt.wantError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidVersion)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
			assert.Equal(t, tt.alpha, v.Alpha())
			assert.Equal(t, tt.alpha >= 0, v.IsPrerelease())
		})
	}
}

func TestReleaseCycle(t *testing.T) {
	tests := []struct {
		start  string
		stable string
		next   string
	}{
		{start: "1.4.0-alpha2", stable: "1.4.0", next: "1.5.0-alpha0"},
		{start: "2.0.3-alpha0", stable: "2.0.3", next: "2.1.0-alpha0"},
		{start: "0.0.8-alpha14", stable: "0.0.8", next: "0.1.0-alpha0"},
		{start: "3.9.0-alpha1", stable: "3.9.0", next: "3.10.0-alpha0"},
	}

	for _, tt := range tests {
		t.Run(tt.start, func(t *testing.T) {
			start := MustParse(tt.start)

			stable, err := start.Stabilize()
			require.NoError(t, err)
			assert.Equal(t, tt.stable, stable.String())
			assert.False(t, stable.IsPrerelease())
			assert.Equal(t, start.Major(), stable.Major())
			assert.Equal(t, start.Minor(), stable.Minor())
			assert.Equal(t, start.Patch(), stable.Patch())

			next, err := stable.NextDevelopment()
			require.NoError(t, err)
			assert.Equal(t, tt.next, next.String())
			assert.Equal(t, stable.Minor()+1, next.Minor())
			assert.Equal(t, uint64(0), next.Patch())
			assert.Equal(t, 0, next.Alpha())
		})
	}
}

func TestMutationPreconditions(t *testing.T) {
	_, err := MustParse("1.4.0").Stabilize()
	assert.ErrorIs(t, err, ErrNotPrerelease)

	_, err = MustParse("1.4.0-alpha1").NextDevelopment()
	assert.ErrorIs(t, err, ErrPrerelease)

	_, err = Version{}.NextDevelopment()
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestTag(t *testing.T) {
	assert.Equal(t, "V1.4.0", MustParse("1.4.0").Tag())
}

func TestEqualAndOrder(t *testing.T) {
	assert.True(t, MustParse("1.4.0").Equal(MustParse("v1.4.0")))
	assert.False(t, MustParse("1.4.0").Equal(MustParse("1.4.0-alpha2")))
	assert.True(t, MustParse("1.4.0-alpha2").LessThan(MustParse("1.4.0")))
	assert.True(t, Version{}.Equal(Version{}))
	assert.True(t, Version{}.IsZero())
}

func TestJSONRoundTrip(t *testing.T) {
	type doc struct {
		V Version `json:"v"`
		E Version `json:"e"`
	}
	data, err := json.Marshal(doc{V: MustParse("1.5.0-alpha0")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"1.5.0-alpha0","e":""}`, string(data))

	var out doc
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "1.5.0-alpha0", out.V.String())
	assert.True(t, out.E.IsZero())
}

func TestPreviousTag(t *testing.T) {
	tags := []string{"V1.2.0", "V1.3.0", "V1.10.0", "V1.4.0", "latest", "V1.3.5-alpha1", "v1.3.9"}

	prev, ok := PreviousTag(tags, MustParse("1.4.0"))
	require.True(t, ok)
	assert.Equal(t, "V1.3.0", prev)

	prev, ok = PreviousTag(tags, MustParse("1.11.0"))
	require.True(t, ok)
	assert.Equal(t, "V1.10.0", prev)

	_, ok = PreviousTag(tags, MustParse("1.0.0"))
	assert.False(t, ok)
}
