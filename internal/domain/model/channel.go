package model

type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// ChannelConfig describes one configured payment gateway. Credentials are an
// opaque blob owned by the gateway adapter; this core never inspects them.
type ChannelConfig struct {
	Key         string // gateway identifier, e.g. "bold", "paypal", "bank_transfer"
	Enabled     bool
	AutoApprove bool
	Credentials []byte
	Environment Environment
}

// BankAccount is the descriptive payload shown to clients paying by bank
// transfer. No behavior.
type BankAccount struct {
	BankName      string
	AccountNumber string
	Holder        string
	AccountType   string
}
