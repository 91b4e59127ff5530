package mpesa

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CallbackResult is the decoded STK push callback.
type CallbackResult struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	Success           bool
	TransactionID     string
	Amount            float64
	PhoneNumber       string
	ResultDescription string
	Raw               json.RawMessage
}

// Outcome maps the callback result code onto a payment outcome.
func (c CallbackResult) Outcome() Outcome {
	return outcomeForResultCode(c.ResultCode)
}

type callbackEnvelope struct {
	Body struct {
		StkCallback *struct {
			MerchantRequestID string      `json:"MerchantRequestID"`
			CheckoutRequestID string      `json:"CheckoutRequestID"`
			ResultCode        json.Number `json:"ResultCode"`
			ResultDesc        string      `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

const invalidCallback = "invalid callback"

// DecodeCallback never fails. Payloads that cannot be read decode to an unsuccessful result.
func DecodeCallback(raw []byte) CallbackResult {
	result := CallbackResult{ResultCode: -1, ResultDescription: invalidCallback}
	if len(raw) > 0 {
		result.Raw = json.RawMessage(append([]byte(nil), raw...))
	}

	var env callbackEnvelope
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil || env.Body.StkCallback == nil {
		return result
	}
	cb := env.Body.StkCallback
	code, err := cb.ResultCode.Int64()
	if err != nil || cb.CheckoutRequestID == "" {
		return result
	}

	result.MerchantRequestID = cb.MerchantRequestID
	result.CheckoutRequestID = cb.CheckoutRequestID
	result.ResultCode = int(code)
	result.Success = code == 0
	result.ResultDescription = cb.ResultDesc

	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			result.TransactionID = metadataString(item.Value)
		case "PhoneNumber":
			result.PhoneNumber = metadataString(item.Value)
		case "Amount":
			if n, ok := item.Value.(json.Number); ok {
				result.Amount, _ = n.Float64()
			}
		}
	}
	return result
}

func metadataString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
