package compose

import "errors"

// ErrNoComponents is returned when a merge is requested with no input
// documents.
var ErrNoComponents = errors.New("no components specified")

// Merge combines documents into one, in order.
//
// Services union with last-write-wins: a colliding service name is fully
// replaced by the later document's definition, deliberately not a deep
// merge. Networks and volumes union with first-write-wins: the earlier
// definition is assumed authoritative (it may carry driver config the
// later bare reference lacks).
func Merge(docs []*Document) (*Document, error) {
	if len(docs) == 0 {
		return nil, ErrNoComponents
	}

	merged := &Document{
		Services: map[string]*Service{},
		Networks: map[string]map[string]any{},
		Volumes:  map[string]map[string]any{},
	}

	for _, doc := range docs {
		if doc == nil {
			continue
		}
		for name, svc := range doc.Services {
			merged.Services[name] = svc
		}
		for name, net := range doc.Networks {
			if _, ok := merged.Networks[name]; !ok {
				merged.Networks[name] = net
			}
		}
		for name, vol := range doc.Volumes {
			if _, ok := merged.Volumes[name]; !ok {
				merged.Volumes[name] = vol
			}
		}
	}

	if len(merged.Networks) == 0 {
		merged.Networks = nil
	}
	if len(merged.Volumes) == 0 {
		merged.Volumes = nil
	}
	return merged, nil
}
