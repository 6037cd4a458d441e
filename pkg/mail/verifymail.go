package mail

import (
	"errors"

	emailverifier "github.com/AfterShip/email-verifier"
)

type Verifier struct {
	verifier *emailverifier.Verifier
	smtp     bool
}

// NewVerifier smtp 为 true 时额外检查地址是否可投递（需要外网）
func NewVerifier(smtp bool) *Verifier {
	v := emailverifier.NewVerifier().DisableCatchAllCheck()
	if smtp {
		v = v.EnableSMTPCheck()
	}
	return &Verifier{verifier: v, smtp: smtp}
}

// CheckSyntax 只校验地址格式
func (v *Verifier) CheckSyntax(email string) error {
	if !v.verifier.ParseAddress(email).Valid {
		return errors.New("email address syntax is invalid")
	}
	return nil
}

func (v *Verifier) VerifierEmail(email string) error {
	if err := v.CheckSyntax(email); err != nil {
		return err
	}
	if !v.smtp {
		return nil
	}
	ret, err := v.verifier.Verify(email)
	if err != nil {
		return err
	}
	if ret.SMTP == nil || !ret.SMTP.Deliverable {
		return errors.New("email address not deliverable")
	}
	return nil
}
