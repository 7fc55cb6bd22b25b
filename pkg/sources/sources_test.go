package sources

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopulationUnmarshal(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int64
	}{
		{"number", `123456`, 123456},
		{"numeric string", `"789"`, 789},
		{"float truncates", `123.9`, 123},
		{"float string truncates", `"45.7"`, 45},
		{"null", `null`, 0},
		{"negative", `-5`, 0},
		{"garbage string", `"not a number"`, 0},
		{"bool", `true`, 0},
		{"empty string", `""`, 0},
		{"overflows int64", `1e300`, 0},
		{"overflow string", `"92233720368547758080"`, 0},
		{"max int64 boundary", `9223372036854775807`, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var p Population
			err := json.Unmarshal([]byte(tc.in), &p)
			require.NoError(t, err)
			assert.Equal(t, Population(tc.want), p)
		})
	}
}

func TestDecodeCountries(t *testing.T) {
	body := []byte(`[
		{
			"name": "Nigeria",
			"capital": "Abuja",
			"region": "Africa",
			"population": 206139589,
			"flag": "https://flagcdn.com/ng.svg",
			"currencies": [{"code": "NGN", "name": "Nigerian naira", "symbol": "N"}]
		},
		{
			"name": "Nowhere",
			"population": "oops"
		}
	]`)

	records, err := decodeCountries(body)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Nigeria", records[0].Name)
	assert.Equal(t, Population(206139589), records[0].Population)
	require.Len(t, records[0].Currencies, 1)
	assert.Equal(t, "NGN", records[0].Currencies[0].Code)

	// junk population coerces instead of failing the whole payload
	assert.Equal(t, Population(0), records[1].Population)
}

func TestDecodeCountries_Malformed(t *testing.T) {
	_, err := decodeCountries([]byte(`{"not": "a list"}`))
	assert.Error(t, err)
}

func TestDecodeRates(t *testing.T) {
	body := []byte(`{"result": "success", "rates": {"USD": 1, "NGN": 1600.5}}`)

	rates, err := decodeRates(body)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"USD": 1, "NGN": 1600.5}, rates)
}
