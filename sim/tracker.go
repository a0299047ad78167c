package sim

// Change tracking: every component type carries two window sets, new-this-window
// and erased-this-window. An entity enters the new set when CreateComponent
// succeeds and stays there until the step commit clears the window, so the
// same creation is visible to the remainder of that step's phases and to
// nothing afterwards. An entity enters the erased set when erasure is
// requested (for the whole entity or a single component); the component stays
// readable until the commit performs the physical removal.
//
// EachNew and EachErased are queries only. They never mutate the window sets;
// only the Server's commit clears them.

// EachNew invokes the visitor once per entity whose component of type T was
// created during the current window. The component pointer is read/write.
// The visitor's return value is advisory; iteration always completes.
func EachNew[T any](r Reader, visitor func(Entity, *T) bool) {
	st, ok := lookupStore[T](r)
	if !ok {
		return
	}
	st.eachNew(visitor)
}

// EachErased invokes the visitor once per entity whose component of type T was
// marked erased during the current window. The component pointer still refers
// to the live value: physical removal happens at the step commit, after the
// window closes. The visitor's return value is advisory; iteration always
// completes.
func EachErased[T any](r Reader, visitor func(Entity, *T) bool) {
	st, ok := lookupStore[T](r)
	if !ok {
		return
	}
	st.eachErased(visitor)
}
