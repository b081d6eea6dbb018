package itemid

import "strings"

// QName is a namespace-qualified name: a namespace URI paired with a local
// name. The zero value is the empty name in the empty namespace and is
// never a valid property or node-type name.
type QName struct {
	Namespace string
	Local     string
}

// NewQName builds a QName from a namespace URI and local name.
func NewQName(namespace, local string) QName {
	return QName{Namespace: namespace, Local: local}
}

// String renders the QName as "{namespace}local", or just the local name
// when the namespace is empty (the common case for the default namespace).
func (q QName) String() string {
	if q.Namespace == "" {
		return q.Local
	}
	var b strings.Builder
	b.WriteByte('{')
	b.WriteString(q.Namespace)
	b.WriteByte('}')
	b.WriteString(q.Local)
	return b.String()
}

// IsZero reports whether q is the empty QName.
func (q QName) IsZero() bool {
	return q.Namespace == "" && q.Local == ""
}
