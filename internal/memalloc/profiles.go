package memalloc

import (
	"fmt"
	"slices"
	"sort"
)

// PageSize is the allocation unit. Table entries are multiples of it.
const PageSize = 4096

// MaxChunks bounds the size of any allocation table.
const MaxChunks = 256

// Profile is a named, immutable list of chunk sizes in pages.
type Profile struct {
	Name  string
	ID    int
	pages []uint32
}

// Pages returns a copy of the chunk sizes in pages.
func (p Profile) Pages() []uint32 {
	return slices.Clone(p.pages)
}

// Len returns the number of chunks the profile defines.
func (p Profile) Len() int {
	return len(p.pages)
}

// TotalBytes returns the sum of all chunk sizes.
func (p Profile) TotalBytes() uint64 {
	var total uint64
	for _, n := range p.pages {
		total += uint64(n) * PageSize
	}
	return total
}

// Profile ids as accepted by the alloc_method module parameter.
const (
	ProfileBasic         = 0
	ProfileMaxOutput     = 1
	ProfileBasicX2       = 2
	ProfileBasic16KStill = 3
	ProfileBasicMVCDBP   = 4
	ProfileBasic4KOutput = 5
	ProfileAndroid       = 11
)

// DefaultProfile is used when configuration names none.
const DefaultProfile = "android"

// class expands to count chunks of pages each.
type class struct {
	count int
	pages uint32
}

func expand(classes ...class) []uint32 {
	var out []uint32
	for _, c := range classes {
		for range c.count {
			out = append(out, c.pages)
		}
	}
	return out
}

// basicClasses is the shared head of the basic family of tables.
var basicClasses = []class{
	{9, 1}, {8, 4}, {4, 10}, {4, 22}, {11, 38}, {7, 50}, {5, 75}, {5, 86},
	{2, 113}, {2, 152}, {3, 162}, {3, 270}, {6, 403}, {2, 450}, {4, 893},
	{1, 1999}, {1, 3997},
}

func doubled(classes []class) []class {
	out := make([]class, len(classes))
	for i, c := range classes {
		out[i] = class{c.count * 2, c.pages}
	}
	return out
}

var builtinProfiles = []Profile{
	{
		Name:  "basic",
		ID:    ProfileBasic,
		pages: expand(append(slices.Clone(basicClasses), class{1, 4096}, class{1, 8192})...),
	},
	{
		// The kernel table pads this profile with 66 zero-size slots, which
		// would alias addresses. Only the usable chunks are kept.
		Name:  "max-output",
		ID:    ProfileMaxOutput,
		pages: []uint32{64, 64, 128, 512, 3072, 8448},
	},
	{
		Name:  "basic-x2",
		ID:    ProfileBasicX2,
		pages: expand(doubled(append(slices.Clone(basicClasses), class{1, 4096}, class{1, 8192}))...),
	},
	{
		Name:  "basic-16k-still",
		ID:    ProfileBasic16KStill,
		pages: expand(append(slices.Clone(basicClasses), class{1, 4096}, class{1, 8192}, class{1, 19000})...),
	},
	{
		Name:  "basic-mvc-dbp",
		ID:    ProfileBasicMVCDBP,
		pages: expand(append(slices.Clone(basicClasses), class{5, 3997}, class{1, 4096}, class{1, 8192})...),
	},
	{
		Name:  "basic-4k-output",
		ID:    ProfileBasic4KOutput,
		pages: expand(append(slices.Clone(basicClasses), class{1, 4096}, class{4, 7200}, class{1, 14000}, class{2, 17400})...),
	},
	{
		Name: "android",
		ID:   ProfileAndroid,
		pages: expand(
			class{9, 1}, class{8, 4}, class{4, 10}, class{4, 22}, class{11, 38},
			class{7, 50}, class{5, 75}, class{5, 86}, class{2, 113}, class{2, 152},
			class{3, 162}, class{3, 270}, class{6, 403}, class{3, 450}, class{6, 893},
			class{10, 1024},
		),
	},
}

// Profiles returns the built-in profiles ordered by id.
func Profiles() []Profile {
	out := slices.Clone(builtinProfiles)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ProfileByName returns the built-in profile called name.
func ProfileByName(name string) (Profile, error) {
	for _, p := range builtinProfiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
}

// ProfileByID returns the built-in profile with the given id. Unknown ids
// select basic, as the kernel module does.
func ProfileByID(id int) Profile {
	for _, p := range builtinProfiles {
		if p.ID == id {
			return p
		}
	}
	return builtinProfiles[0]
}

// NewProfile builds a custom profile from chunk sizes in pages.
func NewProfile(name string, pages []uint32) (Profile, error) {
	if len(pages) == 0 {
		return Profile{}, fmt.Errorf("%w: empty table", ErrInvalidProfile)
	}
	if len(pages) > MaxChunks {
		return Profile{}, fmt.Errorf("%w: %d chunks exceeds %d", ErrInvalidProfile, len(pages), MaxChunks)
	}
	for i, n := range pages {
		if n == 0 {
			return Profile{}, fmt.Errorf("%w: chunk %d has zero size", ErrInvalidProfile, i)
		}
	}
	return Profile{Name: name, ID: -1, pages: slices.Clone(pages)}, nil
}
