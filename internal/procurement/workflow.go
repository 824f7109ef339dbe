package procurement

import (
	"time"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/workflow"
)

// Transition triggers.
const (
	TriggerSubmit            workflow.Trigger = "submit"
	TriggerProcess           workflow.Trigger = "process"
	TriggerApprove           workflow.Trigger = "approve"
	TriggerSend              workflow.Trigger = "send"
	TriggerReceive           workflow.Trigger = "receive"
	TriggerVerify            workflow.Trigger = "verify"
	TriggerSubmitToWarehouse workflow.Trigger = "submit-to-warehouse"
)

var (
	requestMachine = workflow.New("spp",
		workflow.Transition[RequestStatus]{From: RequestDraft, Trigger: TriggerSubmit, To: RequestSubmitted, Effects: []workflow.Effect{workflow.EffectStampSubmitDate}},
		workflow.Transition[RequestStatus]{From: RequestSubmitted, Trigger: TriggerProcess, To: RequestProcessed},
	)
	orderMachine = workflow.New("sopb",
		workflow.Transition[OrderStatus]{From: OrderDraft, Trigger: TriggerApprove, To: OrderSubmitted},
		workflow.Transition[OrderStatus]{From: OrderSubmitted, Trigger: TriggerSend, To: OrderSent},
		workflow.Transition[OrderStatus]{From: OrderSent, Trigger: TriggerReceive, To: OrderReceived},
	)
	receiptMachine = workflow.New("lpb",
		workflow.Transition[ReceiptStatus]{From: ReceiptDraft, Trigger: TriggerVerify, To: ReceiptVerified},
		workflow.Transition[ReceiptStatus]{From: ReceiptVerified, Trigger: TriggerSubmitToWarehouse, To: ReceiptSubmitted},
	)
)

// Apply returns the request after trigger, or a typed rejection.
func (p PurchaseRequest) Apply(trigger workflow.Trigger, now time.Time) (PurchaseRequest, workflow.Outcome[RequestStatus], error) {
	out, err := requestMachine.Fire(p.Status, trigger, func() error {
		if trigger == TriggerSubmit && len(p.Items) == 0 {
			return requestMachine.Precondition(trigger, "at least one item is required")
		}
		return nil
	})
	if err != nil {
		return p, out, err
	}
	next := p
	next.Status = out.To
	if out.Has(workflow.EffectStampSubmitDate) {
		stamped := now
		next.SubmittedAt = &stamped
	}
	if out.Has(workflow.EffectTouch) {
		next.UpdatedAt = now
	}
	return next, out, nil
}

// Apply returns the order after trigger, or a typed rejection.
func (o PurchaseOrder) Apply(trigger workflow.Trigger, now time.Time) (PurchaseOrder, workflow.Outcome[OrderStatus], error) {
	out, err := orderMachine.Fire(o.Status, trigger, func() error {
		if trigger != TriggerApprove {
			return nil
		}
		if len(o.Items) == 0 {
			return orderMachine.Precondition(trigger, "order has no items")
		}
		for _, line := range o.Items {
			if !line.UnitPrice.IsPositive() {
				return orderMachine.Precondition(trigger, "unit price missing for "+line.ItemCode)
			}
		}
		return nil
	})
	if err != nil {
		return o, out, err
	}
	next := o
	next.Status = out.To
	if out.Has(workflow.EffectTouch) {
		next.UpdatedAt = now
	}
	return next, out, nil
}

// Apply returns the receipt after trigger, or a typed rejection.
func (g GoodsReceipt) Apply(trigger workflow.Trigger, now time.Time) (GoodsReceipt, workflow.Outcome[ReceiptStatus], error) {
	out, err := receiptMachine.Fire(g.Status, trigger, func() error {
		if trigger != TriggerVerify {
			return nil
		}
		if len(g.Items) == 0 {
			return receiptMachine.Precondition(trigger, "receipt has no items")
		}
		for _, line := range g.Items {
			if !line.Quality.Valid() {
				return receiptMachine.Precondition(trigger, "quality not recorded for "+line.ItemCode)
			}
		}
		return nil
	})
	if err != nil {
		return g, out, err
	}
	next := g
	next.Status = out.To
	if out.Has(workflow.EffectTouch) {
		next.UpdatedAt = now
	}
	return next, out, nil
}
