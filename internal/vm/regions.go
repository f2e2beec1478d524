package vm

import "fmt"

// RegionKind tags a range of the address space with the rules the bus enforces against it.
type RegionKind uint8

const (
	Bootloader RegionKind = iota
	KernelCore
	KernelTraps
	KernelData
	KernelHeap
	KernelStack
	Vram
	Mmio
	UserCode
	UserData
	UserHeap
	UserVram
	UserStack

	numRegionKinds
)

func (k RegionKind) String() string {
	switch k {
	case Bootloader:
		return "Bootloader"
	case KernelCore:
		return "KernelCore"
	case KernelTraps:
		return "KernelTraps"
	case KernelData:
		return "KernelData"
	case KernelHeap:
		return "KernelHeap"
	case KernelStack:
		return "KernelStack"
	case Vram:
		return "Vram"
	case Mmio:
		return "Mmio"
	case UserCode:
		return "UserCode"
	case UserData:
		return "UserData"
	case UserHeap:
		return "UserHeap"
	case UserVram:
		return "UserVram"
	case UserStack:
		return "UserStack"
	default:
		return fmt.Sprintf("RegionKind(%d)", uint8(k))
	}
}

// perTask reports whether a region kind carries a task id and is subject to the current-task
// check in User mode.
func (k RegionKind) perTask() bool {
	switch k {
	case UserCode, UserData, UserHeap, UserVram, UserStack:
		return true
	default:
		return false
	}
}

// perm is the (read, write, execute) permission triple a region kind grants.
type perm struct {
	r, w, x bool
}

// permissions holds the fixed R/W/X grant per region kind, identical for Kernel mode and, for
// per-task kinds, for User mode accessing its own task's band. Table in §6.1.
var permissions = map[RegionKind]perm{
	Bootloader:  {r: true, w: false, x: true},
	KernelCore:  {r: true, w: false, x: true},
	KernelTraps: {r: true, w: false, x: true},
	KernelData:  {r: true, w: true, x: false},
	KernelHeap:  {r: true, w: true, x: false},
	KernelStack: {r: true, w: true, x: false},
	Vram:        {r: true, w: true, x: false},
	Mmio:        {r: true, w: true, x: false},
	UserCode:    {r: true, w: false, x: true},
	UserData:    {r: true, w: true, x: false},
	UserHeap:    {r: true, w: true, x: false},
	UserVram:    {r: true, w: true, x: false},
	UserStack:   {r: true, w: true, x: false},
}

func (p perm) allows(intent Intent) bool {
	switch intent {
	case Read:
		return p.r
	case Write:
		return p.w
	case Execute:
		return p.x
	default:
		return false
	}
}

// Region is a named, typed, non-overlapping range of the address space. Task is meaningful only
// when Kind.perTask() is true.
type Region struct {
	Kind  RegionKind
	Start Word
	End   Word // inclusive
	Task  int
}

func (r Region) contains(addr Word) bool {
	return addr >= r.Start && addr <= r.End
}

func (r Region) String() string {
	if r.Kind.perTask() {
		return fmt.Sprintf("%s(%d)[%s-%s]", r.Kind, r.Task, r.Start, r.End)
	}

	return fmt.Sprintf("%s[%s-%s]", r.Kind, r.Start, r.End)
}

// Default memory map addresses, per §6.1.
const (
	BootloaderStart  Word = 0x0000
	KernelCoreStart  Word = 0x0400
	KernelTrapsStart Word = 0x1000
	KernelDataStart  Word = 0x1200
	KernelHeapStart  Word = 0x1800
	KernelStackStart Word = 0x2000
	VramStart        Word = 0x2400
	MmioStart        Word = 0x3400
	UserBandsStart   Word = 0x3800

	userBandSize = 0x1000 // per task: code+data+heap+stack+vram quintet below
	userSubSize  = userBandSize / 5
)

// Fixed cells within KernelData, used by the CPU and trap dispatch.
const (
	CurrentTaskAddr Word = KernelDataStart
	TrapCauseAddr   Word = KernelDataStart + 1
	SavedUserSPAddr Word = KernelDataStart + 2 // 2 bytes: the interrupted mode's SP, per deliverTrap
	TrapVectorAddr  Word = KernelTrapsStart
)

// DefaultRegions builds the region list for numTasks user tasks starting at UserBandsStart, each
// task getting a code/data/heap/vram/stack quintet.
func DefaultRegions(numTasks int) []Region {
	regions := []Region{
		{Kind: Bootloader, Start: BootloaderStart, End: KernelCoreStart - 1},
		{Kind: KernelCore, Start: KernelCoreStart, End: KernelTrapsStart - 1},
		{Kind: KernelTraps, Start: KernelTrapsStart, End: KernelDataStart - 1},
		{Kind: KernelData, Start: KernelDataStart, End: KernelHeapStart - 1},
		{Kind: KernelHeap, Start: KernelHeapStart, End: KernelStackStart - 1},
		{Kind: KernelStack, Start: KernelStackStart, End: VramStart - 1},
		{Kind: Vram, Start: VramStart, End: MmioStart - 1},
		{Kind: Mmio, Start: MmioStart, End: UserBandsStart - 1},
	}

	base := UserBandsStart

	for t := 0; t < numTasks; t++ {
		bandStart := base + Word(t*userBandSize)
		kinds := []RegionKind{UserCode, UserData, UserHeap, UserVram, UserStack}

		for i, kind := range kinds {
			start := bandStart + Word(i*userSubSize)
			end := start + Word(userSubSize) - 1
			regions = append(regions, Region{Kind: kind, Start: start, End: end, Task: t})
		}
	}

	return regions
}

// RegionTable is a flat address → region-kind lookup built once at bus construction, per the
// "region dispatch" design note: a linear scan over a handful of regions is fine, but a table
// lookup is the stronger option and is cheap to build for a 64 KiB space.
type RegionTable struct {
	byAddr  [65536]int16 // index into regions, -1 if unmapped
	regions []Region
}

// NewRegionTable builds a RegionTable from an (assumed non-overlapping) region list.
func NewRegionTable(regions []Region) *RegionTable {
	t := &RegionTable{regions: regions}

	for i := range t.byAddr {
		t.byAddr[i] = -1
	}

	for i, r := range regions {
		for a := int(r.Start); a <= int(r.End); a++ {
			t.byAddr[a] = int16(i)
		}
	}

	return t
}

// Lookup returns the region containing addr, if any.
func (t *RegionTable) Lookup(addr Word) (Region, bool) {
	idx := t.byAddr[addr]
	if idx < 0 {
		return Region{}, false
	}

	return t.regions[idx], true
}

// Allowed implements the access-check policy of §4.3 and §6.1: resolve addr to its region, then
// consult the permission table and, for per-task regions accessed from User mode, the current
// task.
func (t *RegionTable) Allowed(addr Word, mode Mode, intent Intent, currentTask int) (Region, bool) {
	region, ok := t.Lookup(addr)
	if !ok {
		return Region{}, false
	}

	p, ok := permissions[region.Kind]
	if !ok || !p.allows(intent) {
		return region, false
	}

	if !region.Kind.perTask() {
		return region, mode == Kernel
	}

	if mode == Kernel {
		return region, true
	}

	return region, region.Task == currentTask
}
