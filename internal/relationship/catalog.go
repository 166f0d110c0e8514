package relationship

// Catalog indexes the entity IDs minted during the current ingestion batch.
// The analyzer consults it to decide whether an edge target is internal to
// the batch or an external reference, and to resolve CALLS targets. Built
// before analysis starts; read-only afterwards, so no locking.
type Catalog struct {
	classes map[string]string   // qualified class name -> class node ID
	ids     map[string]bool     // every minted node ID
	methods map[string][]string // classID + "\x00" + method name -> method node IDs
	fields  map[string]string   // classID + "\x00" + field name -> field node ID
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		classes: make(map[string]string),
		ids:     make(map[string]bool),
		methods: make(map[string][]string),
		fields:  make(map[string]string),
	}
}

// AddClass registers a class declared in the batch under its qualified name.
func (c *Catalog) AddClass(qualifiedName, id string) {
	c.classes[qualifiedName] = id
	c.ids[id] = true
}

// AddMethod registers a method under its owning class.
func (c *Catalog) AddMethod(classID, name, id string) {
	key := classID + "\x00" + name
	c.methods[key] = append(c.methods[key], id)
	c.ids[id] = true
}

// AddField registers a field under its owning class.
func (c *Catalog) AddField(classID, name, id string) {
	c.fields[classID+"\x00"+name] = id
	c.ids[id] = true
}

// ClassID returns the minted ID for a qualified class name declared in the
// batch.
func (c *Catalog) ClassID(qualifiedName string) (string, bool) {
	id, ok := c.classes[qualifiedName]
	return id, ok
}

// MethodIDs returns every overload of a method name on a class.
func (c *Catalog) MethodIDs(classID, name string) []string {
	return c.methods[classID+"\x00"+name]
}

// FieldID returns the minted ID for a field on a class.
func (c *Catalog) FieldID(classID, name string) (string, bool) {
	id, ok := c.fields[classID+"\x00"+name]
	return id, ok
}

// Contains reports whether an ID was minted in this batch.
func (c *Catalog) Contains(id string) bool {
	return c.ids[id]
}
