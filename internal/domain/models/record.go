package models

import "time"

// FraudType enumerates supported fraud labels.
type FraudType = string

const (
	FraudCardNotPresent        FraudType = "CARD_NOT_PRESENT"
	FraudAccountTakeover       FraudType = "ACCOUNT_TAKEOVER"
	FraudSkimming              FraudType = "SKIMMING"
	FraudAuthorizedPushPayment FraudType = "AUTHORIZED_PUSH_PAYMENT"
	FraudCardPresentCloned     FraudType = "CARD_PRESENT_CLONED"
	FraudSyntheticIdentity     FraudType = "SYNTHETIC_IDENTITY"
	FraudFriendlyFraud         FraudType = "FRIENDLY_FRAUD"
	FraudMoneyMule             FraudType = "MONEY_MULE"
	FraudSocialEngineering     FraudType = "SOCIAL_ENGINEERING"
)

// Channel enumerates customer interaction channels.
const (
	ChannelApp  = "APP"
	ChannelWeb  = "WEB"
	ChannelATM  = "ATM"
	ChannelPOS  = "POS"
	ChannelWire = "WIRE"
)

// Region enumerates bank operating regions.
const (
	RegionNorth = "NORTH"
	RegionSouth = "SOUTH"
	RegionEast  = "EAST"
	RegionWest  = "WEST"
)

// Age bands.
const (
	Age18to25 = "A18_25"
	Age26to35 = "A26_35"
	Age36to50 = "A36_50"
	Age50Plus = "A50_PLUS"
)

const CurrencyUSD = "USD"

// AliasCausalColumn is the backward-compatible duplicate of is_causal_fraud
// kept for external consumers. Both columns must always hold identical values.
const AliasCausalColumn = "is_casual_fraud"

func FraudTypeValues() []string {
	return []string{
		FraudCardNotPresent, FraudAccountTakeover, FraudSkimming,
		FraudAuthorizedPushPayment, FraudCardPresentCloned, FraudSyntheticIdentity,
		FraudFriendlyFraud, FraudMoneyMule, FraudSocialEngineering,
	}
}

func ChannelValues() []string {
	return []string{ChannelApp, ChannelWeb, ChannelATM, ChannelPOS, ChannelWire}
}

func RegionValues() []string {
	return []string{RegionNorth, RegionSouth, RegionEast, RegionWest}
}

func AgeBandValues() []string {
	return []string{Age18to25, Age26to35, Age36to50, Age50Plus}
}

// DeviceTypeFor maps a channel to its device type. Unmapped channels default
// to desktop.
func DeviceTypeFor(channel string) string {
	switch channel {
	case ChannelApp:
		return "mobile"
	case ChannelWeb, ChannelWire:
		return "desktop"
	case ChannelATM:
		return "atm"
	case ChannelPOS:
		return "pos"
	default:
		return "desktop"
	}
}

// Record is one synthetic transaction row. FraudType is empty for non-fraud
// rows; AliasCausal mirrors IsCausalFraud at all times.
type Record struct {
	TransactionID      string    `json:"transaction_id"`
	EventTime          time.Time `json:"event_time"`
	CustomerID         string    `json:"customer_id"`
	AccountID          string    `json:"account_id"`
	AgeBand            string    `json:"age_band"`
	Region             string    `json:"region"`
	AccountTenureDays  int       `json:"account_tenure_days"`
	Channel            string    `json:"channel"`
	DeviceID           string    `json:"device_id"`
	DeviceType         string    `json:"device_type"`
	OS                 string    `json:"os"`
	AppVersion         string    `json:"app_version"`
	IP                 string    `json:"ip"`
	MerchantID         string    `json:"merchant_id"`
	MerchantCategory   string    `json:"merchant_category"`
	MerchantCountry    string    `json:"merchant_country"`
	Amount             float64   `json:"amount"`
	Currency           string    `json:"currency"`
	TxnsLast24h        int       `json:"txns_last_24h"`
	AvgAmount7d        float64   `json:"avg_amount_7d"`
	ChargebackCount90d int       `json:"chargeback_count_90d"`
	IsFraud            bool      `json:"is_fraud"`
	FraudType          string    `json:"fraud_type"`
	IsCausalFraud      bool      `json:"is_causal_fraud"`
	Scenario           string    `json:"scenario"`
	IsDirty            bool      `json:"is_dirty"`
	DirtyIssues        []string  `json:"dirty_issues"`
	AliasCausal        bool      `json:"is_casual_fraud"`
}

// Columns lists output column names in serialization order.
func Columns() []string {
	return []string{
		"transaction_id", "event_time", "customer_id", "account_id", "age_band",
		"region", "account_tenure_days", "channel", "device_id", "device_type",
		"os", "app_version", "ip", "merchant_id", "merchant_category",
		"merchant_country", "amount", "currency", "txns_last_24h",
		"avg_amount_7d", "chargeback_count_90d", "is_fraud", "fraud_type",
		"is_causal_fraud", "scenario", "is_dirty", "dirty_issues",
		AliasCausalColumn,
	}
}

// SyncAlias re-mirrors the causal flag into the alias column. Called after
// every mutation point that can touch fraud labels.
func (r *Record) SyncAlias() {
	r.AliasCausal = r.IsCausalFraud
}

// GetString returns the value of a string column by name.
func (r *Record) GetString(col string) (string, bool) {
	switch col {
	case "transaction_id":
		return r.TransactionID, true
	case "customer_id":
		return r.CustomerID, true
	case "account_id":
		return r.AccountID, true
	case "age_band":
		return r.AgeBand, true
	case "region":
		return r.Region, true
	case "channel":
		return r.Channel, true
	case "device_id":
		return r.DeviceID, true
	case "device_type":
		return r.DeviceType, true
	case "os":
		return r.OS, true
	case "app_version":
		return r.AppVersion, true
	case "ip":
		return r.IP, true
	case "merchant_id":
		return r.MerchantID, true
	case "merchant_category":
		return r.MerchantCategory, true
	case "merchant_country":
		return r.MerchantCountry, true
	case "currency":
		return r.Currency, true
	case "scenario":
		return r.Scenario, true
	}
	return "", false
}

// SetString assigns a string column by name. Returns false for unknown
// columns; the transaction id is deliberately not settable through here.
func (r *Record) SetString(col, v string) bool {
	switch col {
	case "customer_id":
		r.CustomerID = v
	case "account_id":
		r.AccountID = v
	case "age_band":
		r.AgeBand = v
	case "region":
		r.Region = v
	case "channel":
		r.Channel = v
	case "device_id":
		r.DeviceID = v
	case "device_type":
		r.DeviceType = v
	case "os":
		r.OS = v
	case "app_version":
		r.AppVersion = v
	case "ip":
		r.IP = v
	case "merchant_id":
		r.MerchantID = v
	case "merchant_category":
		r.MerchantCategory = v
	case "merchant_country":
		r.MerchantCountry = v
	case "currency":
		r.Currency = v
	case "scenario":
		r.Scenario = v
	default:
		return false
	}
	return true
}

// CopyFrom overwrites every column except the transaction id with src's
// values. The issue list is copied, not shared.
func (r *Record) CopyFrom(src *Record) {
	id := r.TransactionID
	*r = *src
	r.TransactionID = id
	r.DirtyIssues = append([]string(nil), src.DirtyIssues...)
}
