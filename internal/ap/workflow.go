package ap

import (
	"strings"
	"time"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/workflow"
)

// Voucher triggers.
const (
	TriggerVerify    workflow.Trigger = "verify"
	TriggerAuthorize workflow.Trigger = "authorize"
	TriggerPay       workflow.Trigger = "pay"
)

var voucherMachine = workflow.New("bkk",
	workflow.Transition[VoucherStatus]{From: VoucherDraft, Trigger: TriggerVerify, To: VoucherVerified},
	workflow.Transition[VoucherStatus]{From: VoucherVerified, Trigger: TriggerAuthorize, To: VoucherAuthorized, Effects: []workflow.Effect{workflow.EffectStampActor}},
	workflow.Transition[VoucherStatus]{From: VoucherAuthorized, Trigger: TriggerPay, To: VoucherPaid, Effects: []workflow.Effect{workflow.EffectStampActor, workflow.EffectStampPaymentDate}},
)

// Apply returns the voucher after trigger. Verification requires every match
// line to agree; payment requires a known method and a reference.
func (v Voucher) Apply(trigger workflow.Trigger, in workflow.Input, now time.Time) (Voucher, workflow.Outcome[VoucherStatus], error) {
	out, err := voucherMachine.Fire(v.Status, trigger, func() error {
		switch trigger {
		case TriggerVerify:
			if !(MatchResult{Lines: v.Items}).AllMatch() {
				return voucherMachine.Precondition(trigger, "three-way match has discrepancies")
			}
		case TriggerPay:
			if !PaymentMethod(in.Method).Valid() {
				return voucherMachine.Precondition(trigger, "payment method must be transfer, cek or tunai")
			}
			if strings.TrimSpace(in.Reference) == "" {
				return voucherMachine.Precondition(trigger, "payment reference is required")
			}
		}
		return nil
	})
	if err != nil {
		return v, out, err
	}
	next := v
	next.Status = out.To
	if out.Has(workflow.EffectStampActor) {
		switch trigger {
		case TriggerAuthorize:
			next.AuthorizedBy = in.Actor
		case TriggerPay:
			next.PaidBy = in.Actor
			next.Method = PaymentMethod(in.Method)
			next.Reference = strings.TrimSpace(in.Reference)
		}
	}
	if out.Has(workflow.EffectStampPaymentDate) {
		paid := now
		next.PaidAt = &paid
	}
	if out.Has(workflow.EffectTouch) {
		next.UpdatedAt = now
	}
	return next, out, nil
}
