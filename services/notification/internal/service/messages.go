package service

import (
	"strings"
	"text/template"

	"github.com/AfshinJalili/bankflow/libs/events"
)

const welcomeSubject = "Welcome! Your Bank Account is Ready"

var (
	welcomeEmail = template.Must(template.New("email").Parse(`Dear {{.Name}},

Congratulations! Your bank account has been successfully created.

Account Details:
----------------------------------
Account Number:  {{.AccountNumber}}
Account Type:    {{.AccountType}}
Branch Code:     {{.BranchCode}}
Initial Balance: ₱{{.InitialBalance}}
Interest Rate:   {{.InterestRate}}%
Status:          {{.Status}}
----------------------------------

You can now start using your account for deposits, withdrawals, and transfers.

If you have any questions, please contact us at support@bank.com or visit your nearest branch.

Thank you for choosing our bank!

Best regards,
The Banking Team
`))

	welcomeSMS = template.Must(template.New("sms").Parse(
		`Welcome {{.FirstName}}! Your {{.AccountType}} account #{{.AccountNumber}} is now active with balance: ₱{{.InitialBalance}}. Thank you for banking with us!`))
)

type welcomeView struct {
	Name           string
	FirstName      string
	AccountNumber  int64
	AccountType    string
	BranchCode     string
	InitialBalance string
	InterestRate   string
	Status         string
}

func newWelcomeView(evt events.BankAccountCreated) welcomeView {
	branch := "N/A"
	if evt.BranchCode != nil && *evt.BranchCode != "" {
		branch = *evt.BranchCode
	}
	return welcomeView{
		Name:           evt.Name.Full(),
		FirstName:      evt.FirstName,
		AccountNumber:  evt.AccountNumber,
		AccountType:    evt.AccountType,
		BranchCode:     branch,
		InitialBalance: evt.InitialBalance.StringFixed(2),
		InterestRate:   evt.InterestRate.StringFixed(2),
		Status:         evt.AccountStatus,
	}
}

func render(t *template.Template, v welcomeView) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}
