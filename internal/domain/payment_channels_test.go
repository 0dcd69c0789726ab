package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPayInfo(t *testing.T) {
	channels := []PaymentChannel{
		{Type: ChannelPromptPay, Name: "shop", Value: "0812345678", IsActive: true},
		{Type: ChannelBankAccount, Name: "kbank", Value: "123-4-56789-0", IsActive: true},
		{Type: ChannelQRCode, Name: "main", Value: "/qr-codes/a.png", IsActive: true},
		{Type: ChannelPromptPay, Name: "old", Value: "0999999999", IsActive: false},
	}

	info := BuildPayInfo(channels, "https://cdn.example.com/slips/", 2000)

	assert.Equal(t, PayInfo{
		QRURL:        "https://cdn.example.com/slips/qr-codes/a.png",
		PromptPayID:  "0812345678",
		BankAccount:  "123-4-56789-0",
		DepositMinor: 2000,
	}, info)

	assert.Equal(t, PayInfo{DepositMinor: 500}, BuildPayInfo(nil, "", 500))
}

func TestPaymentChannel_Validate(t *testing.T) {
	tests := []struct {
		name string
		c    PaymentChannel
		ok   bool
	}{
		{"valid", PaymentChannel{Type: ChannelPromptPay, Name: "shop", Value: "0812345678"}, true},
		{"unknown type", PaymentChannel{Type: "crypto", Name: "x", Value: "y"}, false},
		{"missing name", PaymentChannel{Type: ChannelBankAccount, Value: "1"}, false},
		{"missing value", PaymentChannel{Type: ChannelQRCode, Name: "main"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
