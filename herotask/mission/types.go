package mission

import (
	"errors"
	"time"
)

// EventType classifies the everyday member actions that damage the mission
// boss.
type EventType string

const (
	EventStoreVisit  EventType = "store_visit"
	EventAttack      EventType = "attack"
	EventEasyTask    EventType = "easy_task"
	EventHardTask    EventType = "hard_task"
	EventMessageSent EventType = "message_sent"
)

// Damage dealt per accepted event.
var eventDamage = map[EventType]int64{
	EventStoreVisit:  2,
	EventAttack:      2,
	EventEasyTask:    1,
	EventHardTask:    4,
	EventMessageSent: 4,
}

// Per-member acceptance caps. Message events have no numeric cap; they
// dedup by calendar day instead.
var eventCaps = map[EventType]int{
	EventStoreVisit: 5,
	EventAttack:     10,
	EventEasyTask:   10,
	EventHardTask:   6,
}

// Duration of a special mission and the damage bonus for members who failed
// no task while it ran.
const (
	Duration        = 14 * 24 * time.Hour
	HPPerMember     = 100
	NoFailuresBonus = 10
)

// State is the one-way lifecycle of a mission document. The transition out
// of StateActive is a compare-and-set, so finalization runs exactly once even
// when several clients observe the terminal condition together.
type State string

const (
	StateActive     State = "active"
	StateFinalizing State = "finalizing"
	StateFinalized  State = "finalized"
)

var (
	ErrNoActiveMission  = errors.New("alliance has no active mission")
	ErrActiveExists     = errors.New("alliance already has an active mission")
	ErrMissionNotFound  = errors.New("mission not found")
	ErrNotMember        = errors.New("user is not a member of this mission")
	ErrExpired          = errors.New("mission has expired")
	ErrAlreadyCompleted = errors.New("mission already completed")
	ErrContention       = errors.New("mission update retries exhausted")
)

// MemberProgress tracks one member's accepted contributions.
type MemberProgress struct {
	StoreVisits   int      `bson:"store_visits" json:"store_visits"`
	Attacks       int      `bson:"attacks" json:"attacks"`
	EasyTasks     int      `bson:"easy_tasks" json:"easy_tasks"`
	HardTasks     int      `bson:"hard_tasks" json:"hard_tasks"`
	MessageDays   []string `bson:"message_days" json:"message_days"`
	NoFailedTasks bool     `bson:"no_failed_tasks" json:"no_failed_tasks"`
	Damage        int64    `bson:"damage" json:"damage"`
}

// Contributions is the number of accepted events across all types.
func (p *MemberProgress) Contributions() int {
	return p.StoreVisits + p.Attacks + p.EasyTasks + p.HardTasks + len(p.MessageDays)
}

func (p *MemberProgress) count(event EventType) int {
	switch event {
	case EventStoreVisit:
		return p.StoreVisits
	case EventAttack:
		return p.Attacks
	case EventEasyTask:
		return p.EasyTasks
	case EventHardTask:
		return p.HardTasks
	}
	return 0
}

func (p *MemberProgress) increment(event EventType, day string) {
	switch event {
	case EventStoreVisit:
		p.StoreVisits++
	case EventAttack:
		p.Attacks++
	case EventEasyTask:
		p.EasyTasks++
	case EventHardTask:
		p.HardTasks++
	case EventMessageSent:
		p.MessageDays = append(p.MessageDays, day)
	}
}

func (p *MemberProgress) hasMessageDay(day string) bool {
	for _, d := range p.MessageDays {
		if d == day {
			return true
		}
	}
	return false
}

// Mission is the shared alliance document held in the synchronized store.
// Version backs the optimistic concurrency guard on every commit.
type Mission struct {
	ID         int64                      `bson:"_id" json:"id"`
	AllianceID int64                      `bson:"alliance_id" json:"alliance_id"`
	MaxHP      int64                      `bson:"max_hp" json:"max_hp"`
	HP         int64                      `bson:"hp" json:"hp"`
	StartsAt   time.Time                  `bson:"starts_at" json:"starts_at"`
	EndsAt     time.Time                  `bson:"ends_at" json:"ends_at"`
	State      State                      `bson:"state" json:"state"`
	Completed  bool                       `bson:"completed" json:"completed"`
	Members    map[string]*MemberProgress `bson:"members" json:"members"`
	Version    int64                      `bson:"version" json:"version"`
}

// Expired reports whether the mission window has closed at now.
func (m *Mission) Expired(now time.Time) bool {
	return now.After(m.EndsAt)
}

// DamageDealt is the total damage applied so far, bonuses included.
func (m *Mission) DamageDealt() int64 {
	return m.MaxHP - m.HP
}

// clone deep-copies the mission so transactional mutation never aliases the
// caller's view.
func (m *Mission) clone() *Mission {
	out := *m
	out.Members = make(map[string]*MemberProgress, len(m.Members))
	for id, p := range m.Members {
		cp := *p
		cp.MessageDays = append([]string(nil), p.MessageDays...)
		out.Members[id] = &cp
	}
	return &out
}

// MessageDayKey formats the calendar day used to dedup chat messages.
func MessageDayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
