package guid

import "context"

// batchCheckInterval is how many identifiers are minted between context checks.
const batchCheckInterval = 100

// mintBatch calls mint count times. On cancellation it returns the identifiers
// minted so far with ErrContextCanceled.
func mintBatch[T any](ctx context.Context, count int, mint func() T) ([]T, error) {
	if count <= 0 {
		return []T{}, nil
	}
	ids := make([]T, 0, count)
	for i := 0; i < count; i++ {
		if i%batchCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return ids, ErrContextCanceled
			default:
			}
		}
		ids = append(ids, mint())
	}
	return ids, nil
}

// NewBatch mints count GUIDs for tenant, resolving the identity once.
//
// A count of zero or less yields an empty slice. If ctx ends first, the
// partial batch is returned with ErrContextCanceled.
//
// Example:
//
//	ids, err := guid.NewBatch(ctx, 0, 1000)
//	if err != nil {
//	    // ids may hold a partial batch
//	}
func NewBatch(ctx context.Context, tenant int64, count int) ([]GUID, error) {
	if err := guidShape.checkTenant(tenant); err != nil {
		return nil, err
	}
	id := identity()
	platform := id.PlatformID()
	return mintBatch(ctx, count, func() GUID {
		return mintGUID(tenant, platform, id)
	})
}

// NewTinyBatch mints count TinyGUIDs for tenant.
func NewTinyBatch(ctx context.Context, tenant int64, count int) ([]TinyGUID, error) {
	if err := tinyShape.checkTenant(tenant); err != nil {
		return nil, err
	}
	platform := identity().PlatformID()
	return mintBatch(ctx, count, func() TinyGUID {
		return mintTiny(tenant, platform)
	})
}

// NewBatch mints count FactoryGUIDs for tenant. The whole batch uses the
// configuration current at the call, even if a setter runs meanwhile.
func (f *Factory) NewBatch(ctx context.Context, tenant int64, count int) ([]FactoryGUID, error) {
	st := f.state.Load()
	if err := st.shape.checkTenant(tenant); err != nil {
		return nil, err
	}
	platform := st.platformID()
	return mintBatch(ctx, count, func() FactoryGUID {
		return st.mint(tenant, platform)
	})
}
