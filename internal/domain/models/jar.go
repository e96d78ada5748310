package models

const DefaultJarImage = "https://example.com/default_jar.png"

const (
	JarDeposit  = "deposit"
	JarWithdraw = "withdraw"
)

type Jar struct {
	ID                 int64  `json:"id"`
	UserID             int64  `json:"-"`
	Balance            int64  `json:"jar_balance"`
	Name               string `json:"jar_name"`
	Target             string `json:"jar_target"`
	AccumulationAmount int64  `json:"jar_accumulation_amount"`
	Image              string `json:"jar_image"`
}
