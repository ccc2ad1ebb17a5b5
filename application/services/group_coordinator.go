package services

import (
	"context"
	"time"

	"wedding-backend/application/ports"
	"wedding-backend/domain/config"
	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/core/valueobjects"
	"wedding-backend/domain/keys"
	pkgerrors "wedding-backend/pkg/errors"

	"go.uber.org/zap"
)

// GroupCoordinator keeps group aggregates in line with their members.
// Recompute is a pure function of the member rows, so repeating it is safe.
type GroupCoordinator struct {
	store  ports.Store
	clock  ports.Clock
	cfg    *config.DomainConfig
	logger *zap.Logger
	sleep  func(time.Duration)
}

// NewGroupCoordinator creates a coordinator.
func NewGroupCoordinator(store ports.Store, clock ports.Clock, cfg *config.DomainConfig, logger *zap.Logger) *GroupCoordinator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &GroupCoordinator{store: store, clock: clock, cfg: cfg, logger: logger, sleep: time.Sleep}
}

// Get reads a group row.
func (c *GroupCoordinator) Get(ctx context.Context, eventID, groupID string) (*entities.GuestGroup, error) {
	item, err := c.store.GetItem(ctx, keys.GroupKey(eventID, groupID))
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, pkgerrors.NewNotFoundError("group")
		}
		return nil, pkgerrors.Wrap(err, "group read")
	}
	var g entities.GuestGroup
	if err := entities.FromItem(item, &g); err != nil {
		return nil, pkgerrors.Wrap(err, "decode group")
	}
	return &g, nil
}

// Recompute derives the group aggregate from the member guest rows and
// stores it when it changed.
func (c *GroupCoordinator) Recompute(ctx context.Context, eventID, groupID string) (*entities.GuestGroup, error) {
	for attempt := 0; attempt < c.cfg.MaxWriteRetries; attempt++ {
		if attempt > 0 {
			c.sleep(c.cfg.RetryBaseDelay * time.Duration(1<<uint(attempt-1)))
		}
		group, err := c.Get(ctx, eventID, groupID)
		if err != nil {
			return nil, err
		}
		members, err := c.members(ctx, group)
		if err != nil {
			return nil, err
		}
		agg := entities.ComputeGroupAggregate(group.MemberEmails, members)
		if agg == group.GroupAggregate {
			return group, nil
		}

		patch := agg.Patch()
		patch["UpdatedAt"] = c.clock.Now()
		expected := group.Version
		item, err := c.store.UpdateItem(ctx, group.Key(), patch, &expected)
		if pkgerrors.IsVersionMismatch(err) {
			continue
		}
		if err != nil {
			return nil, pkgerrors.Wrap(err, "group update")
		}
		var stored entities.GuestGroup
		if err := entities.FromItem(item, &stored); err != nil {
			return nil, pkgerrors.Wrap(err, "decode group")
		}
		c.logger.Debug("Group aggregate updated",
			zap.String("groupId", groupID),
			zap.String("status", string(agg.GroupRSVPStatus)),
			zap.Int("partySize", agg.CurrentPartySize),
		)
		return &stored, nil
	}
	return nil, pkgerrors.NewConflictError("group is being updated concurrently").WithCode(pkgerrors.CodeRetryExhausted)
}

func (c *GroupCoordinator) members(ctx context.Context, group *entities.GuestGroup) ([]*entities.Guest, error) {
	guests := make([]*entities.Guest, 0, len(group.MemberEmails))
	for _, email := range group.MemberEmails {
		g, err := loadGuest(ctx, c.store, group.EventID, email)
		if pkgerrors.IsNotFound(err) {
			c.logger.Warn("Group member has no guest row",
				zap.String("groupId", group.GroupID),
				zap.String("email", email),
			)
			continue
		}
		if err != nil {
			return nil, err
		}
		guests = append(guests, g)
	}
	return guests, nil
}

// Ensure creates the group when it does not exist yet.
func (c *GroupCoordinator) Ensure(ctx context.Context, eventID, groupID, name string) error {
	if _, err := valueobjects.ParseGroupID(groupID); err != nil {
		return err
	}
	if name == "" {
		name = groupID
	}
	group := entities.NewGuestGroup(eventID, groupID, name, c.clock.Now())
	group.MaxPartySize = c.cfg.MaxPartySize
	item, err := entities.ToItem(group)
	if err != nil {
		return pkgerrors.Wrap(err, "encode group")
	}
	err = c.store.PutItem(ctx, item, ports.PutOptions{IfNotExists: true})
	if err != nil && !pkgerrors.IsConflict(err) {
		return pkgerrors.Wrap(err, "group create")
	}
	return nil
}

// SetMembership adds email to or removes it from the group's member list.
func (c *GroupCoordinator) SetMembership(ctx context.Context, eventID, groupID, email string, member bool) error {
	email = valueobjects.NormalizeEmail(email)
	for attempt := 0; attempt < c.cfg.MaxWriteRetries; attempt++ {
		group, err := c.Get(ctx, eventID, groupID)
		if err != nil {
			return err
		}
		has := false
		for _, m := range group.MemberEmails {
			if m == email {
				has = true
				break
			}
		}
		if has == member {
			return nil
		}

		if member {
			group.AddMember(email)
		} else {
			kept := group.MemberEmails[:0]
			for _, m := range group.MemberEmails {
				if m != email {
					kept = append(kept, m)
				}
			}
			group.MemberEmails = kept
		}
		patch := ports.Patch{"MemberEmails": group.MemberEmails, "UpdatedAt": c.clock.Now()}
		if len(group.MemberEmails) == 0 {
			patch["MemberEmails"] = []string{}
		}
		if group.PrimaryContact == "" && member {
			patch["PrimaryContact"] = email
		}
		expected := group.Version
		_, err = c.store.UpdateItem(ctx, group.Key(), patch, &expected)
		if pkgerrors.IsVersionMismatch(err) {
			continue
		}
		if err != nil {
			return pkgerrors.Wrap(err, "group membership update")
		}
		return nil
	}
	return pkgerrors.NewConflictError("group is being updated concurrently").WithCode(pkgerrors.CodeRetryExhausted)
}
