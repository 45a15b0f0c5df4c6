package numbers

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func mustBig(t *testing.T, s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad big int %s", s)
	}
	return v
}

func Test_Numbers(t *testing.T) {
	t.Run("Should format raw amounts in token units", func(t *testing.T) {
		assert.Equal(t, "86.4", FormatUnits(mustBig(t, "86400000000000000000"), 18))
		assert.Equal(t, "200", FormatUnits(mustBig(t, "200000000000000000000"), 18))
		assert.Equal(t, "0.000000000000000001", FormatUnits(big.NewInt(1), 18))
		assert.Equal(t, "0", FormatUnits(nil, 18))
	})
	t.Run("Should round trip raw amounts without precision loss", func(t *testing.T) {
		inputs := []string{
			"0",
			"1",
			"86400000000000000000",
			"123456789012345678901234567890",
			"115792089237316195423570985008687907853269984665640564039457584007913129639935",
		}
		for _, in := range inputs {
			raw := mustBig(t, in)
			back := FromDisplayDecimal(ToDisplayDecimal(raw, 18), 18)
			assert.Equal(t, 0, raw.Cmp(back), in)

			parsed, err := ParseUnits(FormatUnits(raw, 18), 18)
			assert.Nil(t, err)
			assert.Equal(t, 0, raw.Cmp(parsed), in)
		}
	})
	t.Run("Should convert to float only for display", func(t *testing.T) {
		assert.Equal(t, 86.4, ToDisplayFloat(mustBig(t, "86400000000000000000"), 18))
	})
	t.Run("Should reject amounts beyond token precision", func(t *testing.T) {
		_, err := ParseUnits("1.0000000000000000001", 18)
		assert.NotNil(t, err)

		_, err = ParseUnits("abc", 18)
		assert.NotNil(t, err)
	})
	t.Run("Should truncate when converting back from decimals", func(t *testing.T) {
		d := decimal.RequireFromString("1.5")
		assert.Equal(t, "1", FromDisplayDecimal(d, 0).String())
	})
	t.Run("Should compute ceil division and max", func(t *testing.T) {
		assert.Equal(t, "3", CeilDiv(big.NewInt(7), big.NewInt(3)).String())
		assert.Equal(t, "2", CeilDiv(big.NewInt(6), big.NewInt(3)).String())
		assert.Equal(t, "0", CeilDiv(big.NewInt(0), big.NewInt(3)).String())
		assert.Equal(t, "5", MaxBig(big.NewInt(5), big.NewInt(2)).String())
		assert.Equal(t, "5", MaxBig(big.NewInt(2), big.NewInt(5)).String())
	})
}
