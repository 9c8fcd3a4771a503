package battle

const (
	SlotGround    = "ground"
	SlotRightHand = "rightHand"
	SlotLeftHand  = "leftHand"
	SlotLoaded    = "loaded"
)

type Item struct {
	ID   int
	Type string

	Owner *Unit
	Slot  string
	SlotX int
	SlotY int

	// Pos is the ground position; NoPosition while owned or loaded.
	Pos Position

	Ammo     *Item
	AmmoQty  int
	InWeapon *Item

	// Player marks items that entered the battle from the player's stores.
	Player bool
	Fixed  bool

	// Body links a corpse or unconscious-body item to its unit.
	Body *Unit
}

func (it *Item) OnGround() bool { return it.Owner == nil && it.InWeapon == nil && it.Slot == SlotGround }
