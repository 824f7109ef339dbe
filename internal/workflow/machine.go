// Package workflow enforces document status transitions.
package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalTransition is returned when a trigger is not allowed from the current status.
	ErrIllegalTransition = errors.New("workflow: illegal transition")
	// ErrPrecondition is returned when a legal transition lacks required data.
	ErrPrecondition = errors.New("workflow: precondition not met")
)

// Trigger names an action that moves a document between statuses.
type Trigger string

// Effect is a side effect the caller applies after a transition.
type Effect string

const (
	EffectTouch            Effect = "touch"
	EffectStampActor       Effect = "stamp_actor"
	EffectStampSubmitDate  Effect = "stamp_submit_date"
	EffectStampPaymentDate Effect = "stamp_payment_date"
)

// Transition is one row of a transition table.
type Transition[S ~string] struct {
	From    S
	Trigger Trigger
	To      S
	Effects []Effect
}

// TransitionError describes a rejected transition.
type TransitionError struct {
	Document string
	From     string
	Trigger  Trigger
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("workflow: %s cannot %s from status %s", e.Document, e.Trigger, e.From)
}

// Unwrap exposes ErrIllegalTransition to errors.Is.
func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// PreconditionError describes a transition blocked by missing data.
type PreconditionError struct {
	Document string
	Trigger  Trigger
	Reason   string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("workflow: %s %s: %s", e.Document, e.Trigger, e.Reason)
}

// Unwrap exposes ErrPrecondition to errors.Is.
func (e *PreconditionError) Unwrap() error {
	return ErrPrecondition
}

// Outcome is the result of a successful transition.
type Outcome[S ~string] struct {
	From    S
	To      S
	Trigger Trigger
	Effects []Effect
}

// Has reports whether the outcome carries effect.
func (o Outcome[S]) Has(effect Effect) bool {
	for _, e := range o.Effects {
		if e == effect {
			return true
		}
	}
	return false
}

type edge[S ~string] struct {
	from    S
	trigger Trigger
}

// Machine is an immutable transition table for one document type.
type Machine[S ~string] struct {
	document string
	edges    map[edge[S]]Transition[S]
}

// New builds a Machine for document from rows.
func New[S ~string](document string, rows ...Transition[S]) *Machine[S] {
	m := &Machine[S]{document: document, edges: make(map[edge[S]]Transition[S], len(rows))}
	for _, row := range rows {
		m.edges[edge[S]{from: row.From, trigger: row.Trigger}] = row
	}
	return m
}

// Document returns the document type name.
func (m *Machine[S]) Document() string {
	return m.document
}

// Can reports whether trigger is legal from status.
func (m *Machine[S]) Can(from S, trigger Trigger) bool {
	_, ok := m.edges[edge[S]{from: from, trigger: trigger}]
	return ok
}

// Fire validates trigger against from, then runs guard. The returned outcome
// always includes EffectTouch.
func (m *Machine[S]) Fire(from S, trigger Trigger, guard func() error) (Outcome[S], error) {
	row, ok := m.edges[edge[S]{from: from, trigger: trigger}]
	if !ok {
		return Outcome[S]{}, &TransitionError{Document: m.document, From: string(from), Trigger: trigger}
	}
	if guard != nil {
		if err := guard(); err != nil {
			return Outcome[S]{}, err
		}
	}
	effects := append([]Effect{EffectTouch}, row.Effects...)
	return Outcome[S]{From: from, To: row.To, Trigger: trigger, Effects: effects}, nil
}

// Precondition is a helper for guards.
func (m *Machine[S]) Precondition(trigger Trigger, reason string) error {
	return &PreconditionError{Document: m.document, Trigger: trigger, Reason: reason}
}

// Observer receives transition and reconciliation outcomes for instrumentation.
type Observer interface {
	ObserveTransition(document string, trigger Trigger, err error)
	ObserveReconciliation(allMatch bool, lines int)
}

// NopObserver discards observations.
type NopObserver struct{}

func (NopObserver) ObserveTransition(string, Trigger, error) {}
func (NopObserver) ObserveReconciliation(bool, int)          {}

// Input carries caller-supplied data needed by some transitions.
type Input struct {
	Actor     string
	Method    string
	Reference string
}
