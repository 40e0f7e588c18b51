package pool

import (
	"strconv"

	"sharepool/core/events"
	"sharepool/core/types"
	"sharepool/crypto"
)

const (
	// EventTypePoolCreated is emitted when a pool is created and seeded.
	EventTypePoolCreated = "pool.created"
	// EventTypeSharesPurchased is emitted when a buyer acquires shares.
	EventTypeSharesPurchased = "pool.shares.purchased"
	// EventTypeDistributionFunded is emitted when rewards are earmarked.
	EventTypeDistributionFunded = "pool.distribution.funded"
	// EventTypeRewardsClaimed is emitted when a holder claims rewards.
	EventTypeRewardsClaimed = "pool.rewards.claimed"
	// EventTypeCapitalWithdrawn is emitted when the authority withdraws capital.
	EventTypeCapitalWithdrawn = "pool.capital.withdrawn"
	// EventTypePoolClosed is emitted when a pool stops accepting activity.
	EventTypePoolClosed = "pool.closed"
	// EventTypePoolAccountsClosed is emitted when the pool records are destroyed.
	EventTypePoolAccountsClosed = "pool.accounts.closed"
	// EventTypeDepositClaimed is emitted when a holder redeems shares after closure.
	EventTypeDepositClaimed = "pool.deposit.claimed"

	EventTypeProgramInitialized    = "program.initialized"
	EventTypeGrandAuthorityUpdated = "program.authority.updated"
	EventTypeCreatorPermitAdded    = "program.creator.added"
	EventTypeCreatorPermitUpdated  = "program.creator.updated"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

// PoolCreatedEvent describes a freshly created pool.
func PoolCreatedEvent(p *Pool, deposit uint64) *types.Event {
	return &types.Event{
		Type: EventTypePoolCreated,
		Attributes: map[string]string{
			"pool":      p.Address.String(),
			"creator":   p.Creator.String(),
			"authority": p.Authority.String(),
			"reference": p.Reference.String(),
			"mint":      p.Mint.String(),
			"seed":      u64(p.Seed),
			"shares":    u64(p.Shares),
			"minted":    u64(p.Minted),
			"deposit":   u64(deposit),
		},
	}
}

func SharesPurchasedEvent(pool, buyer crypto.Address, amount, cost, minted uint64) *types.Event {
	return &types.Event{
		Type: EventTypeSharesPurchased,
		Attributes: map[string]string{
			"pool":   pool.String(),
			"buyer":  buyer.String(),
			"amount": u64(amount),
			"cost":   u64(cost),
			"minted": u64(minted),
		},
	}
}

func DistributionFundedEvent(d *Distribution, amount uint64) *types.Event {
	return &types.Event{
		Type: EventTypeDistributionFunded,
		Attributes: map[string]string{
			"pool":         d.Pool.String(),
			"distribution": d.Address.String(),
			"authority":    d.Authority.String(),
			"amount":       u64(amount),
			"rewards":      u64(d.Rewards),
		},
	}
}

func RewardsClaimedEvent(d *Distribution, holder crypto.Address, amount, holderClaimed uint64) *types.Event {
	return &types.Event{
		Type: EventTypeRewardsClaimed,
		Attributes: map[string]string{
			"pool":          d.Pool.String(),
			"distribution":  d.Address.String(),
			"holder":        holder.String(),
			"amount":        u64(amount),
			"claimed":       u64(d.Claimed),
			"holderClaimed": u64(holderClaimed),
		},
	}
}

func CapitalWithdrawnEvent(pool, destination crypto.Address, shares, payout uint64) *types.Event {
	return &types.Event{
		Type: EventTypeCapitalWithdrawn,
		Attributes: map[string]string{
			"pool":        pool.String(),
			"destination": destination.String(),
			"shares":      u64(shares),
			"amount":      u64(payout),
		},
	}
}

func PoolClosedEvent(pool crypto.Address) *types.Event {
	return &types.Event{Type: EventTypePoolClosed, Attributes: map[string]string{"pool": pool.String()}}
}

func PoolAccountsClosedEvent(pool, reference crypto.Address, sweptCapital, sweptRewards uint64) *types.Event {
	return &types.Event{
		Type: EventTypePoolAccountsClosed,
		Attributes: map[string]string{
			"pool":         pool.String(),
			"reference":    reference.String(),
			"sweptCapital": u64(sweptCapital),
			"sweptRewards": u64(sweptRewards),
		},
	}
}

func DepositClaimedEvent(pool, holder crypto.Address, burned, refund uint64) *types.Event {
	return &types.Event{
		Type: EventTypeDepositClaimed,
		Attributes: map[string]string{
			"pool":   pool.String(),
			"holder": holder.String(),
			"burned": u64(burned),
			"refund": u64(refund),
		},
	}
}

func ProgramInitializedEvent(grand crypto.Address) *types.Event {
	return &types.Event{
		Type:       EventTypeProgramInitialized,
		Attributes: map[string]string{"grandAuthority": grand.String()},
	}
}

func GrandAuthorityUpdatedEvent(previous, next crypto.Address) *types.Event {
	return &types.Event{
		Type: EventTypeGrandAuthorityUpdated,
		Attributes: map[string]string{
			"previous":       previous.String(),
			"grandAuthority": next.String(),
		},
	}
}

func CreatorPermitEvent(eventType string, permit *CreatorPermit) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"creator":   permit.Creator.String(),
			"canCreate": strconv.FormatBool(permit.CanCreate),
		},
	}
}
