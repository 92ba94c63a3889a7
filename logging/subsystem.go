package logging

type SubSystem uint8

const (
	System SubSystem = iota
	Config
	Epochs
	Entropy
	Names
	Hosts
	Observer
	Scheduler
	Reports
	Contract
	Bundler
	Messages
	Server
	Cache
	Testing = 255
)

func (s SubSystem) String() string {
	switch s {
	case System:
		return "System"
	case Config:
		return "Config"
	case Epochs:
		return "Epochs"
	case Entropy:
		return "Entropy"
	case Names:
		return "Names"
	case Hosts:
		return "Hosts"
	case Observer:
		return "Observer"
	case Scheduler:
		return "Scheduler"
	case Reports:
		return "Reports"
	case Contract:
		return "Contract"
	case Bundler:
		return "Bundler"
	case Messages:
		return "Messages"
	case Server:
		return "Server"
	case Cache:
		return "Cache"
	case Testing:
		return "Testing"
	default:
		return "Unknown"
	}
}
