package bolt

import (
	"context"
	"encoding/json"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/user/loghub/internal/domain"
)

// AlertRuleRepository implements domain.AlertRuleRepository on bbolt.
// Rules are keyed by a bucket-sequence id.
type AlertRuleRepository struct {
	db *bbolt.DB
}

func NewAlertRuleRepository(db *bbolt.DB) *AlertRuleRepository {
	return &AlertRuleRepository{db: db}
}

func (r *AlertRuleRepository) Store(ctx context.Context, rule *domain.AlertRule) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAlertRules)
		if rule.ID == 0 {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			rule.ID = seq
		}
		data, err := json.Marshal(rule)
		if err != nil {
			return err
		}
		return b.Put(itob(rule.ID), data)
	})
}

func (r *AlertRuleRepository) FindByID(ctx context.Context, id uint64) (*domain.AlertRule, error) {
	var rule domain.AlertRule
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAlertRules).Get(itob(id))
		if data == nil {
			return domain.ErrNotFound
		}
		return json.Unmarshal(data, &rule)
	})
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *AlertRuleRepository) List(ctx context.Context) ([]domain.AlertRule, error) {
	return r.list(false)
}

func (r *AlertRuleRepository) ListActive(ctx context.Context) ([]domain.AlertRule, error) {
	return r.list(true)
}

func (r *AlertRuleRepository) list(activeOnly bool) ([]domain.AlertRule, error) {
	var rules []domain.AlertRule
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAlertRules).ForEach(func(k, v []byte) error {
			var rule domain.AlertRule
			if err := json.Unmarshal(v, &rule); err != nil {
				return err
			}
			if activeOnly && !rule.IsActive {
				return nil
			}
			rules = append(rules, rule)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// Deactivate flips is_active off. Rules are never deleted so their
// alert history keeps a valid rule_id to point at.
func (r *AlertRuleRepository) Deactivate(ctx context.Context, id uint64) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAlertRules)
		data := b.Get(itob(id))
		if data == nil {
			return domain.ErrNotFound
		}
		var rule domain.AlertRule
		if err := json.Unmarshal(data, &rule); err != nil {
			return err
		}
		rule.IsActive = false
		updated, err := json.Marshal(rule)
		if err != nil {
			return err
		}
		return b.Put(itob(id), updated)
	})
}

// AlertEventRepository implements domain.AlertEventRepository on bbolt.
type AlertEventRepository struct {
	db *bbolt.DB
}

func NewAlertEventRepository(db *bbolt.DB) *AlertEventRepository {
	return &AlertEventRepository{db: db}
}

func (r *AlertEventRepository) Store(ctx context.Context, event *domain.AlertEvent) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAlerts)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		event.ID = seq
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return b.Put(itob(seq), data)
	})
}

// List returns events triggered at or after since, newest first.
func (r *AlertEventRepository) List(ctx context.Context, since time.Time) ([]domain.AlertEvent, error) {
	var events []domain.AlertEvent
	err := r.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketAlerts).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var ev domain.AlertEvent
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			if !since.IsZero() && ev.TriggeredAt.Before(since) {
				continue
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
