package types

// Element is a resolved page element handle: a semantic name bound to a
// concrete selector the browser can act on. Produced by the element resolver,
// consumed by the action executor.
type Element struct {
	Name     string `json:"name"`
	Selector string `json:"selector"`
}
