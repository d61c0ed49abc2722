// Package sdmodel is the in-memory model of a Microkit system description:
// memory regions, protection domains, virtual-memory maps, channels,
// interrupts and set-variables, plus the XML (SDF) emitter.
//
// A SystemDescription is created once with New, mutated by the sDDF
// subsystem builders (package sddf) and the driver instantiation layer
// (package driverinstance), and finally serialized with ToXML. It owns
// every MemoryRegion, ProtectionDomain and Channel it holds; callers
// reference them by the opaque handles minted from pkg/handle.
package sdmodel
