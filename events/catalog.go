package events

import (
	"sort"
	"strings"
)

// Name identifies an event in the closed catalog
type Name string

// Widget lifecycle, state and interaction events. The first argument is the
// host's positive integer widget id.
const (
	WidgetAdded   Name = "widget:added"
	WidgetRemoved Name = "widget:removed"
	WidgetUpdated Name = "widget:updated"
	WidgetMoved   Name = "widget:moved"
	WidgetResized Name = "widget:resized"
	WidgetLoading Name = "widget:loading"
	WidgetData    Name = "widget:data"
	WidgetError   Name = "widget:error"
	WidgetFocused Name = "widget:focused"
	WidgetBlurred Name = "widget:blurred"
	WidgetClicked Name = "widget:clicked"
)

// Page events. The first argument is the host's positive integer page id.
const (
	PageCreated  Name = "page:created"
	PageDeleted  Name = "page:deleted"
	PageSwitched Name = "page:switched"
	PageRenamed  Name = "page:renamed"
)

// Shell events
const (
	EditModeToggled   Name = "edit-mode:toggled"
	ThemeChanged      Name = "theme:changed"
	GridSnapChanged   Name = "grid:snap-changed"
	GridLayoutChanged Name = "grid:layout-changed"
)

// Runtime notifications published by the registry and the instance manager.
// Instance ids are strings, so these sit outside the widget: prefix.
const (
	PluginRegistered   Name = "plugin:registered"
	PluginUnregistered Name = "plugin:unregistered"
	InstanceCreated    Name = "instance:created"
	InstanceUpdated    Name = "instance:updated"
	InstanceDestroyed  Name = "instance:destroyed"
	InstanceData       Name = "instance:data"
	InstanceError      Name = "instance:error"
	InstanceRecovered  Name = "instance:recovered"
)

// CatalogVersion is bumped whenever a name or argument shape changes
const CatalogVersion = 1

// Kind is the expected shape of one event argument
type Kind int

const (
	KindAny Kind = iota
	// KindID is a positive integer id
	KindID
	KindString
	KindBool
	KindError
	// KindObject is a map[string]any or schema.Config
	KindObject
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindID:
		return "positive integer id"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindError:
		return "error"
	case KindObject:
		return "object"
	case KindNumber:
		return "number"
	}
	return "any"
}

// Arg describes one positional argument
type Arg struct {
	Name     string
	Kind     Kind
	Optional bool
}

// Spec is the declared argument shape of an event
type Spec struct {
	Name Name
	Args []Arg
}

func req(name string, k Kind) Arg { return Arg{Name: name, Kind: k} }
func opt(name string, k Kind) Arg { return Arg{Name: name, Kind: k, Optional: true} }

// Catalog is the closed set of event names the bus validates against
var Catalog = map[Name]Spec{
	WidgetAdded:   {Args: []Arg{req("id", KindID), req("pluginId", KindString), opt("position", KindObject)}},
	WidgetRemoved: {Args: []Arg{req("id", KindID)}},
	WidgetUpdated: {Args: []Arg{req("id", KindID), req("changes", KindObject)}},
	WidgetMoved:   {Args: []Arg{req("id", KindID), req("position", KindObject)}},
	WidgetResized: {Args: []Arg{req("id", KindID), req("size", KindObject)}},
	WidgetLoading: {Args: []Arg{req("id", KindID), req("loading", KindBool)}},
	WidgetData:    {Args: []Arg{req("id", KindID), req("data", KindAny)}},
	WidgetError:   {Args: []Arg{req("id", KindID), req("error", KindError)}},
	WidgetFocused: {Args: []Arg{req("id", KindID)}},
	WidgetBlurred: {Args: []Arg{req("id", KindID)}},
	WidgetClicked: {Args: []Arg{req("id", KindID), opt("detail", KindObject)}},

	PageCreated:  {Args: []Arg{req("id", KindID), req("name", KindString)}},
	PageDeleted:  {Args: []Arg{req("id", KindID)}},
	PageSwitched: {Args: []Arg{req("id", KindID), opt("previousId", KindID)}},
	PageRenamed:  {Args: []Arg{req("id", KindID), req("name", KindString)}},

	EditModeToggled:   {Args: []Arg{req("enabled", KindBool)}},
	ThemeChanged:      {Args: []Arg{req("theme", KindString)}},
	GridSnapChanged:   {Args: []Arg{req("enabled", KindBool)}},
	GridLayoutChanged: {Args: []Arg{req("layout", KindAny)}},

	PluginRegistered:   {Args: []Arg{req("pluginId", KindString), opt("version", KindString)}},
	PluginUnregistered: {Args: []Arg{req("pluginId", KindString)}},
	InstanceCreated:    {Args: []Arg{req("instanceId", KindString), req("pluginId", KindString)}},
	InstanceUpdated:    {Args: []Arg{req("instanceId", KindString), req("changes", KindObject)}},
	InstanceDestroyed:  {Args: []Arg{req("instanceId", KindString), req("pluginId", KindString)}},
	InstanceData:       {Args: []Arg{req("instanceId", KindString), req("data", KindAny)}},
	InstanceError:      {Args: []Arg{req("instanceId", KindString), req("error", KindError)}},
	InstanceRecovered:  {Args: []Arg{req("instanceId", KindString)}},
}

func init() {
	for n, s := range Catalog {
		s.Name = n
		Catalog[n] = s
	}
}

// Lookup returns the spec of a cataloged event
func Lookup(name Name) (Spec, bool) {
	s, ok := Catalog[name]
	return s, ok
}

// Names returns every cataloged name in sorted order
func Names() []Name {
	out := make([]Name, 0, len(Catalog))
	for n := range Catalog {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Namespace returns the part of the name before the colon
func (n Name) Namespace() string {
	ns, _, _ := strings.Cut(string(n), ":")
	return ns
}

// IsErrorEvent reports whether name is one of the dedicated error-reporting events
func (n Name) IsErrorEvent() bool {
	return n == WidgetError || n == InstanceError
}
