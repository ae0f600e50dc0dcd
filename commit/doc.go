// Package commit writes the changes recorded in a diff list to the
// database.
//
// A commit compresses the list, folds it into one net change per object and
// generates every missing primary key before the first statement runs. Rows
// are then grouped into homogeneous batches, one statement template each,
// and executed in dependency order:
//
//	INSERT  parents before children
//	UPDATE  parents before children
//	DELETE  children before parents
//
// Foreign key values come from the arcs of the list: a to-one arc sets the
// join columns of its source row, a to-many arc those of its target row.
// Keys assigned by the database are read back after each insert. UPDATEs and
// DELETEs of optimistically locked entities are qualified by the committed
// values of the lock columns and fail with strata.OptimisticLockError unless
// exactly one row matches.
//
//	c := commit.New(translator.New(adapter, registry), pkgen.NewProvider(adapter))
//	summary, err := c.CommitTx(ctx, drv, tracker.Diffs())
//	if err != nil {
//		return err
//	}
//	summary.Apply(g)
package commit
