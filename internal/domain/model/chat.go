package model

import (
	"time"

	"counseling-platform/internal/domain"
)

type ChatStatus string

const (
	ChatQueued    ChatStatus = "queued"
	ChatActive    ChatStatus = "active"
	ChatInactive  ChatStatus = "inactive" // owner silent for 5+ minutes
	ChatCompleted ChatStatus = "completed"
	ChatCancelled ChatStatus = "cancelled"
)

// Idle thresholds for the lifecycle state machine. Both are evaluated lazily
// on the next access to the chat; there is no background sweeper.
const (
	IdleInactiveAfter = 5 * time.Minute
	IdleCloseAfter    = time.Hour
)

// Chat is the aggregate root for one conversation between a user and a
// counsellor. It owns the lifecycle state machine and the billing bookkeeping
// fields; all transitions go through Apply.
type Chat struct {
	ID           int64
	UserID       int64
	CounsellorID *int64

	Status ChatStatus

	CreatedAt        time.Time
	UpdatedAt        time.Time
	StartedAt        *time.Time // set once, first transition to active
	EndedAt          *time.Time // set on entering inactive/completed/cancelled, cleared on reactivation
	LastUserActivity *time.Time // owner actions only, never the counsellor's

	// Billing bookkeeping. DurationMinutes/BilledAmount are frozen at the
	// ending transition so a later reactivation cannot stretch the billable
	// window; IsBilled flips to true exactly once.
	DurationMinutes    int
	BilledAmount       int64
	IsBilled           bool
	BillingProcessedAt *time.Time
}

func NewChat(userID int64) (*Chat, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Chat{
		UserID:    userID,
		Status:    ChatQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsParticipant reports whether the given account may read or write this chat.
func (c *Chat) IsParticipant(userID int64) bool {
	return c.UserID == userID || (c.CounsellorID != nil && *c.CounsellorID == userID)
}

func (c *Chat) IsOwner(userID int64) bool { return c.UserID == userID }

func (c *Chat) Ended() bool {
	return c.Status == ChatInactive || c.Status == ChatCompleted || c.Status == ChatCancelled
}

type EventKind int

const (
	// EventUserMessage is an incoming message authored by the chat owner.
	EventUserMessage EventKind = iota
	// EventCounsellorMessage is an incoming message authored by the assigned counsellor.
	EventCounsellorMessage
	// EventUserRead is the owner fetching the message list.
	EventUserRead
	// EventComplete and EventCancel are explicit participant actions.
	EventComplete
	EventCancel
)

type Event struct {
	Kind EventKind
	Now  time.Time
}

// Effects describe the side effects a transition asks its caller to execute.
// The state machine never performs I/O itself: assignment, persistence,
// billing and broadcasts are carried out by the lifecycle controller after
// the new state has been decided.
type Effects struct {
	// AssignCounsellor: pick the first available counsellor before persisting.
	AssignCounsellor bool
	// SettleBilling: run billing settlement after the new state is committed.
	SettleBilling bool
	// NotifyQueue: broadcast a status change on the counsellor queue topic.
	NotifyQueue bool
	// IdleReturn: the owner came back after more than IdleInactiveAfter of silence.
	IdleReturn bool
	// CheckBalance: first activation; warn (not block) when the wallet is low.
	CheckBalance bool
}

// Apply runs one lifecycle event against the current state and mutates the
// chat in place. It returns the side effects the caller must execute, or an
// error when the event is not admissible (in which case the chat is left
// untouched).
//
// Ordering inside a user event mirrors the access pattern: activity update,
// idle-return detection, lazy auto-close of a long-abandoned active chat,
// then (re)activation. A user message therefore always leaves the chat
// active; a counsellor message never activates anything.
func (c *Chat) Apply(ev Event) (Effects, error) {
	var fx Effects
	now := ev.Now

	switch ev.Kind {
	case EventUserMessage:
		prev := c.LastUserActivity
		c.touchUserActivity(now)
		fx.IdleReturn = c.idleReturn(prev, now)
		if c.autoClose(prev, now) {
			fx.SettleBilling = true
		}
		switch c.Status {
		case ChatQueued:
			if c.CounsellorID == nil {
				fx.AssignCounsellor = true
			}
			fx.CheckBalance = true
			c.activate(now)
			fx.NotifyQueue = true
		case ChatCompleted, ChatInactive, ChatCancelled:
			c.activate(now)
			fx.NotifyQueue = true
		}

	case EventCounsellorMessage:
		if c.Status != ChatActive {
			return Effects{}, domain.ErrChatNotActive
		}
		// The counsellor's message itself is still stored; only the billable
		// window closes, reflecting the time the user was actually present.
		if c.LastUserActivity != nil && now.Sub(*c.LastUserActivity) > IdleInactiveAfter {
			c.Status = ChatInactive
			if c.EndedAt == nil {
				end := c.LastUserActivity.Add(IdleInactiveAfter)
				c.EndedAt = &end
			}
			c.backfillStartedAt()
			c.freezeBillableWindow()
			if !c.IsBilled {
				fx.SettleBilling = true
			}
		}

	case EventUserRead:
		prev := c.LastUserActivity
		c.touchUserActivity(now)
		fx.IdleReturn = c.idleReturn(prev, now)
		if c.autoClose(prev, now) {
			fx.SettleBilling = true
		}
		// Lazy retry for a close that could not be billed earlier.
		if c.Ended() && !c.IsBilled && c.StartedAt != nil && c.EndedAt != nil {
			fx.SettleBilling = true
		}

	case EventComplete, EventCancel:
		target := ChatCompleted
		if ev.Kind == EventCancel {
			target = ChatCancelled
		}
		if c.Status == target {
			return Effects{}, nil
		}
		c.Status = target
		if c.EndedAt == nil {
			end := now
			c.EndedAt = &end
		}
		if c.StartedAt != nil {
			c.freezeBillableWindow()
		}
		if !c.IsBilled {
			fx.SettleBilling = true
		}

	default:
		return Effects{}, domain.ErrInvalidArgument
	}

	c.UpdatedAt = now
	return fx, nil
}

func (c *Chat) touchUserActivity(now time.Time) {
	t := now
	c.LastUserActivity = &t
}

func (c *Chat) idleReturn(prev *time.Time, now time.Time) bool {
	if prev == nil || now.Sub(*prev) <= IdleInactiveAfter {
		return false
	}
	return c.Status == ChatActive || c.Status == ChatInactive
}

// autoClose force-completes an active chat whose owner has been silent for
// more than IdleCloseAfter. The billable window ends at the owner's last
// activity, not at the moment the staleness was noticed.
func (c *Chat) autoClose(prev *time.Time, now time.Time) bool {
	if c.Status != ChatActive || prev == nil || now.Sub(*prev) <= IdleCloseAfter {
		return false
	}
	c.Status = ChatCompleted
	if c.EndedAt == nil {
		end := *prev
		c.EndedAt = &end
	}
	c.backfillStartedAt()
	c.freezeBillableWindow()
	return !c.IsBilled
}

func (c *Chat) activate(now time.Time) {
	c.Status = ChatActive
	c.EndedAt = nil
	if c.StartedAt == nil {
		start := now
		c.StartedAt = &start
	}
}

func (c *Chat) backfillStartedAt() {
	if c.StartedAt == nil {
		start := c.CreatedAt
		c.StartedAt = &start
	}
}

// freezeBillableWindow records the billable duration at the moment the chat
// ends so a later reactivation (which clears EndedAt) cannot change it.
func (c *Chat) freezeBillableWindow() {
	if c.IsBilled || c.StartedAt == nil || c.EndedAt == nil {
		return
	}
	c.DurationMinutes = BillableMinutes(*c.StartedAt, *c.EndedAt)
}

// MarkBilled records a successful (or zero-charge) settlement. Further
// settlement attempts become no-ops.
func (c *Chat) MarkBilled(minutes int, amount int64, at time.Time) {
	c.DurationMinutes = minutes
	c.BilledAmount = amount
	c.IsBilled = true
	t := at
	c.BillingProcessedAt = &t
	c.UpdatedAt = at
}

// RecordBillingAttempt stores the computed charge for visibility when the
// wallet could not cover it; IsBilled stays false so settlement can retry.
func (c *Chat) RecordBillingAttempt(minutes int, amount int64, at time.Time) {
	c.DurationMinutes = minutes
	c.BilledAmount = amount
	c.UpdatedAt = at
}
