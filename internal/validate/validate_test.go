package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQty(t *testing.T) {
	cases := map[string]struct {
		n  int
		ok bool
	}{
		"3":    {3, true},
		" 12 ": {12, true},
		"0":    {0, false},
		"-2":   {0, false},
		"abc":  {0, false},
		"1000": {0, false},
		"":     {0, false},
	}
	for in, want := range cases {
		n, ok := Qty(in)
		assert.Equal(t, want.ok, ok, in)
		assert.Equal(t, want.n, n, in)
	}
}

func TestEmailAndID(t *testing.T) {
	_, ok := Email("test@example.com")
	assert.True(t, ok)
	_, ok = Email("not-an-email")
	assert.False(t, ok)

	id, ok := ID(" wireless-mouse ")
	assert.True(t, ok)
	assert.Equal(t, "wireless-mouse", id)
	_, ok = ID("../etc/passwd")
	assert.False(t, ok)
}

func TestPassword(t *testing.T) {
	assert.True(t, Password("Passw0rd!"))
	assert.False(t, Password("password"))
	assert.False(t, Password("Sh0rt!"))
}

type productInput struct {
	Name              string `validate:"required,max=255"`
	StockQuantity     int    `validate:"gte=0"`
	LowStockThreshold int    `validate:"gte=1"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(productInput{Name: "Lamp", LowStockThreshold: 1}))

	err := Struct(productInput{Name: "", LowStockThreshold: 1})
	var fe FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "name", fe.Field)
	assert.Equal(t, "is required", fe.Message)

	err = Struct(productInput{Name: "Lamp", StockQuantity: -1, LowStockThreshold: 1})
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "stock_quantity", fe.Field)
	assert.Equal(t, "must be at least 0", fe.Message)
}
