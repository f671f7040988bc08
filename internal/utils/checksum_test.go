package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMerchant = "1211149"
	testSecret   = "s3cret"
)

func TestCheckoutHash(t *testing.T) {
	got := CheckoutHash(testMerchant, "ORD-1", "10.00", "LKR", testSecret)
	assert.Equal(t, "19ECA053DBC15365E66382ED1DA4387B", got)
}

func TestNotifyDigest(t *testing.T) {
	assert.Equal(t, "355B8B8DA9AE1FABFBF97565EDB24BA2",
		NotifyDigest(testMerchant, "ORD-1", "10.00", "LKR", "2", testSecret))
	assert.Equal(t, "09B7B95BE01DAA2C1854D94023927E0D",
		NotifyDigest(testMerchant, "ORD-1", "10.00", "LKR", "-2", testSecret))
}

func TestDigestEqualIgnoresCase(t *testing.T) {
	assert.True(t, DigestEqual("355b8b8da9ae1fabfbf97565edb24ba2", "355B8B8DA9AE1FABFBF97565EDB24BA2"))
	assert.False(t, DigestEqual("355B8B8DA9AE1FABFBF97565EDB24BA2", "09B7B95BE01DAA2C1854D94023927E0D"))
	assert.False(t, DigestEqual("", "09B7"))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "10.00", FormatAmount(1000))
	assert.Equal(t, "0.05", FormatAmount(5))
	assert.Equal(t, "1234.56", FormatAmount(123456))
	assert.Equal(t, "-1.50", FormatAmount(-150))
}

func TestParseAmount(t *testing.T) {
	for raw, want := range map[string]int64{"10": 1000, "10.5": 1050, "10.50": 1050, "0.07": 7, " 3.00 ": 300} {
		got, err := ParseAmount(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	for _, raw := range []string{"", "-1.00", "1.234", "abc", ".50", "1.x"} {
		_, err := ParseAmount(raw)
		assert.ErrorIs(t, err, ErrBadAmount, raw)
	}
}
