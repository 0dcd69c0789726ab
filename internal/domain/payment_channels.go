package domain

import "strings"

type ChannelType string

const (
	ChannelPromptPay   ChannelType = "promptpay"
	ChannelBankAccount ChannelType = "bank_account"
	ChannelQRCode      ChannelType = "qr_code"
)

func (t ChannelType) Valid() bool {
	switch t {
	case ChannelPromptPay, ChannelBankAccount, ChannelQRCode:
		return true
	}
	return false
}

// PaymentChannel is one way customers can pay the deposit. For qr_code the
// value is the storage object path of the QR image.
type PaymentChannel struct {
	Type         ChannelType `json:"type"`
	Name         string      `json:"name"`
	Value        string      `json:"value"`
	IsActive     bool        `json:"is_active"`
	DisplayOrder int         `json:"display_order"`
}

func (c PaymentChannel) Validate() error {
	if !c.Type.Valid() {
		return Invalidf("unknown payment channel type %q", c.Type)
	}

	if strings.TrimSpace(c.Name) == "" {
		return Invalidf("payment channel name is required")
	}

	if strings.TrimSpace(c.Value) == "" {
		return Invalidf("payment channel %s/%s needs a value", c.Type, c.Name)
	}

	return nil
}

// PayInfo tells a customer holding a slot where to send the deposit.
type PayInfo struct {
	QRURL        string `json:"qr_url,omitempty"`
	PromptPayID  string `json:"promptpay_id,omitempty"`
	BankAccount  string `json:"bank_account,omitempty"`
	DepositMinor int64  `json:"deposit_minor"`
}

// BuildPayInfo folds the active channels into a PayInfo. Channels are taken
// in display order; a later channel of the same type overrides an earlier
// one. QR paths are resolved against qrBaseURL.
func BuildPayInfo(channels []PaymentChannel, qrBaseURL string, depositMinor int64) PayInfo {
	info := PayInfo{DepositMinor: depositMinor}

	for _, c := range channels {
		if !c.IsActive {
			continue
		}

		switch c.Type {
		case ChannelPromptPay:
			info.PromptPayID = c.Value
		case ChannelBankAccount:
			info.BankAccount = c.Value
		case ChannelQRCode:
			info.QRURL = strings.TrimRight(qrBaseURL, "/") + "/" + strings.TrimLeft(c.Value, "/")
		}
	}

	return info
}
