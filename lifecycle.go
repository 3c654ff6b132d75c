package ioc

import "errors"

// commission runs the commission hooks of a freshly constructed instance:
// OnCommission first, then the descriptor's steps in declaration order.
// The first failure aborts.
func commission(ctx *CreationContext, desc *ComponentDescriptor, instance any) error {
	if c, ok := instance.(Commissionable); ok {
		if err := c.OnCommission(ctx); err != nil {
			return err
		}
	}
	for _, step := range desc.CommissionSteps {
		if err := step(ctx, instance); err != nil {
			return err
		}
	}
	return nil
}

// decommission mirrors commission: the descriptor's steps in reverse order,
// then OnDecommission. Every hook runs even when an earlier one fails.
func decommission(desc *ComponentDescriptor, instance any) error {
	var errs []error
	for i := len(desc.DecommissionSteps) - 1; i >= 0; i-- {
		if err := desc.DecommissionSteps[i](instance); err != nil {
			errs = append(errs, err)
		}
	}
	if d, ok := instance.(Decommissionable); ok {
		if err := d.OnDecommission(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
