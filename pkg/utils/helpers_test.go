package utils

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func Test_Helpers(t *testing.T) {
	t.Run("Should compare addresses ignoring case", func(t *testing.T) {
		assert.True(t, AreAddressesEqual("0xABCDEF0000000000000000000000000000000001", "0xabcdef0000000000000000000000000000000001"))
		assert.False(t, AreAddressesEqual("0x01", "0x02"))
	})
	t.Run("Should detect the null address", func(t *testing.T) {
		assert.True(t, IsNullAddress(common.HexToAddress(NullEthereumAddressHex)))
		assert.False(t, IsNullAddress(common.HexToAddress("0x1")))
	})
	t.Run("Should map, filter and find", func(t *testing.T) {
		doubled := Map([]int{1, 2, 3}, func(v int, i uint64) int { return v * 2 })
		assert.Equal(t, []int{2, 4, 6}, doubled)

		even := Filter([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 })
		assert.Equal(t, []int{2, 4}, even)

		assert.Equal(t, 3, Find([]int{1, 3, 5}, func(v int) bool { return v > 2 }))
		assert.Equal(t, 0, Find([]int{1}, func(v int) bool { return v > 2 }))
	})
	t.Run("Should parse comma separated lists", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b"}, ParseStringAsList(" a, ,b ,"))
		assert.Equal(t, []string{}, ParseStringAsList(""))
	})
}
