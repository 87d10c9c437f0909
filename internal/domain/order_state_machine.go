package domain

import (
	"fmt"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "pending_payment"
	OrderPreOrdered     OrderStatus = "pre_ordered"
	OrderPaid           OrderStatus = "paid"
	OrderFulfilled      OrderStatus = "fulfilled"
	OrderCancelled      OrderStatus = "cancelled"
	OrderRefunded       OrderStatus = "refunded"
)

// OrderTransition is an action that moves an order between states
type OrderTransition string

const (
	TransitionPay     OrderTransition = "pay"
	TransitionFulfill OrderTransition = "fulfill"
	TransitionCancel  OrderTransition = "cancel"
	TransitionRefund  OrderTransition = "refund"
)

// OrderStateMachine enforces valid order status changes.
// Invalid transitions return an error and leave the state unchanged.
type OrderStateMachine struct {
	transitions map[stateTransitionKey]OrderStatus
}

type stateTransitionKey struct {
	state      OrderStatus
	transition OrderTransition
}

// NewOrderStateMachine builds the order lifecycle:
//
//	[pending_payment] ──pay──► [paid] ──fulfill──► [fulfilled]
//	       │                     │
//	    cancel                 refund
//	       ▼                     ▼
//	  [cancelled] ◄─cancel─ [pre_ordered]   [refunded]
//
//	pre_ordered ──pay──► paid
func NewOrderStateMachine() *OrderStateMachine {
	sm := &OrderStateMachine{
		transitions: make(map[stateTransitionKey]OrderStatus),
	}

	sm.addTransition(OrderPendingPayment, TransitionPay, OrderPaid)
	sm.addTransition(OrderPendingPayment, TransitionCancel, OrderCancelled)
	sm.addTransition(OrderPreOrdered, TransitionPay, OrderPaid)
	sm.addTransition(OrderPreOrdered, TransitionCancel, OrderCancelled)
	sm.addTransition(OrderPaid, TransitionFulfill, OrderFulfilled)
	sm.addTransition(OrderPaid, TransitionRefund, OrderRefunded)

	return sm
}

func (sm *OrderStateMachine) addTransition(from OrderStatus, via OrderTransition, to OrderStatus) {
	sm.transitions[stateTransitionKey{state: from, transition: via}] = to
}

// Transition returns the next state, or the current state and an error
func (sm *OrderStateMachine) Transition(current OrderStatus, action OrderTransition) (OrderStatus, error) {
	next, ok := sm.transitions[stateTransitionKey{state: current, transition: action}]
	if !ok {
		return current, fmt.Errorf("invalid order transition: cannot %s from %s", action, current)
	}
	return next, nil
}

// CanTransition checks if a transition is valid without performing it.
func (sm *OrderStateMachine) CanTransition(current OrderStatus, action OrderTransition) bool {
	_, ok := sm.transitions[stateTransitionKey{state: current, transition: action}]
	return ok
}

// ValidTransitions returns all valid transitions from the given state.
func (sm *OrderStateMachine) ValidTransitions(state OrderStatus) []OrderTransition {
	var result []OrderTransition
	for key := range sm.transitions {
		if key.state == state {
			result = append(result, key.transition)
		}
	}
	return result
}

// IsTerminal returns true if no transition leaves the state
func (sm *OrderStateMachine) IsTerminal(state OrderStatus) bool {
	return len(sm.ValidTransitions(state)) == 0
}

// ParseOrderTransition validates a transition name from the admin API
func ParseOrderTransition(s string) (OrderTransition, bool) {
	switch t := OrderTransition(s); t {
	case TransitionPay, TransitionFulfill, TransitionCancel, TransitionRefund:
		return t, true
	}
	return "", false
}
