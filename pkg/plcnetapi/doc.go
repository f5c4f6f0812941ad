// Package plcnetapi is the client for the powerline network API of devolo
// adapters (_dvl-plcnetapi._tcp).
//
// The API addresses the adapter by its powerline MAC address, which is taken
// from the PlcMacAddress property of the advertisement.
package plcnetapi
