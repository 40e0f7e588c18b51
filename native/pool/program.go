package pool

import (
	"fmt"

	"sharepool/crypto"
)

// InitializeProgram records the grand authority. It can run only once.
func (e *Engine) InitializeProgram(signers Signers, signer, grandAuthority crypto.Address) (*ProgramConfig, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := requireSigner(signers, signer, "signer"); err != nil {
		return nil, err
	}
	if grandAuthority.IsZero() {
		return nil, fmt.Errorf("%w: grand authority required", ErrInvalidInput)
	}
	if _, ok, err := e.state.ProgramConfigGet(); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: program", ErrAlreadyInitialized)
	}
	cfg := &ProgramConfig{GrandAuthority: grandAuthority}
	if err := e.state.ProgramConfigPut(cfg); err != nil {
		return nil, err
	}
	e.emit(ProgramInitializedEvent(grandAuthority))
	return cfg.Clone(), nil
}

func (e *Engine) requireGrandAuthority(signers Signers, signer crypto.Address) (*ProgramConfig, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := requireSigner(signers, signer, "grand authority"); err != nil {
		return nil, err
	}
	cfg, ok, err := e.state.ProgramConfigGet()
	if err != nil {
		return nil, err
	}
	if !ok || cfg == nil {
		return nil, fmt.Errorf("%w: program", ErrAccountNotInitialized)
	}
	if cfg.GrandAuthority != signer {
		return nil, ErrSignerNotAuthorized
	}
	return cfg, nil
}

// UpdateGrandAuthority hands the program over to next.
func (e *Engine) UpdateGrandAuthority(signers Signers, current, next crypto.Address) (*ProgramConfig, error) {
	cfg, err := e.requireGrandAuthority(signers, current)
	if err != nil {
		return nil, err
	}
	if next.IsZero() {
		return nil, fmt.Errorf("%w: grand authority required", ErrInvalidInput)
	}
	cfg.GrandAuthority = next
	if err := e.state.ProgramConfigPut(cfg); err != nil {
		return nil, err
	}
	e.emit(GrandAuthorityUpdatedEvent(current, next))
	return cfg.Clone(), nil
}

// AddPoolCreator issues a permit for creator.
func (e *Engine) AddPoolCreator(signers Signers, grandAuthority, creator crypto.Address, canCreate bool) (*CreatorPermit, error) {
	if _, err := e.requireGrandAuthority(signers, grandAuthority); err != nil {
		return nil, err
	}
	if creator.IsZero() {
		return nil, fmt.Errorf("%w: creator required", ErrInvalidInput)
	}
	if _, ok, err := e.state.CreatorPermitGet(creator); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: creator permit", ErrAlreadyInitialized)
	}
	permit := &CreatorPermit{Creator: creator, CanCreate: canCreate}
	if err := e.state.CreatorPermitPut(permit); err != nil {
		return nil, err
	}
	e.emit(CreatorPermitEvent(EventTypeCreatorPermitAdded, permit))
	return permit.Clone(), nil
}

// UpdatePoolCreator changes an existing permit.
func (e *Engine) UpdatePoolCreator(signers Signers, grandAuthority, creator crypto.Address, canCreate bool) (*CreatorPermit, error) {
	if _, err := e.requireGrandAuthority(signers, grandAuthority); err != nil {
		return nil, err
	}
	permit, ok, err := e.state.CreatorPermitGet(creator)
	if err != nil {
		return nil, err
	}
	if !ok || permit == nil {
		return nil, fmt.Errorf("%w: creator permit", ErrAccountNotInitialized)
	}
	permit.CanCreate = canCreate
	if err := e.state.CreatorPermitPut(permit); err != nil {
		return nil, err
	}
	e.emit(CreatorPermitEvent(EventTypeCreatorPermitUpdated, permit))
	return permit.Clone(), nil
}
