// Package telemetry collects read-only host state: platform info, resource
// usage percentages, network interfaces and the system clock.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"
)

var ErrInterfaceNotFound = errors.New("interface not found")

type Resources struct {
	CPUUsagePercent    float64 `json:"cpu_usage_percent"`
	MemoryUsagePercent float64 `json:"memory_usage_percent"`
	DiskUsagePercent   float64 `json:"disk_usage_percent"`
}

type DeviceInfo struct {
	Hostname    string `json:"hostname"`
	OS          string `json:"os"`
	Platform    string `json:"platform"`
	Release     string `json:"release"`
	KernelArch  string `json:"architecture"`
	CPUModel    string `json:"cpu"`
	MemoryTotal string `json:"memory"`
	UptimeSec   uint64 `json:"uptime_seconds"`
}

type Address struct {
	Address string `json:"address"`
}

type InterfaceDetail struct {
	Addresses    []Address `json:"addresses"`
	HardwareAddr string    `json:"hardware_addr"`
	MTU          int       `json:"mtu"`
	IsUp         bool      `json:"isup"`
	Flags        []string  `json:"flags"`
}

type ClockDetails struct {
	Time string `json:"Time"`
	Date string `json:"Date"`
	Zone string `json:"Zone"`
}

// SystemResources samples CPU, memory and root filesystem usage.
func SystemResources(ctx context.Context) (Resources, error) {
	var out Resources
	cpuPerc, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return out, err
	}
	if len(cpuPerc) > 0 {
		out.CPUUsagePercent = cpuPerc[0]
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return out, err
	}
	out.MemoryUsagePercent = vm.UsedPercent
	du, err := disk.UsageWithContext(ctx, "/")
	if err != nil {
		return out, err
	}
	out.DiskUsagePercent = du.UsedPercent
	return out, nil
}

// Info reports general platform facts about the host.
func Info(ctx context.Context) (DeviceInfo, error) {
	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		return DeviceInfo{}, err
	}
	out := DeviceInfo{
		Hostname:   hi.Hostname,
		OS:         hi.OS,
		Platform:   hi.Platform,
		Release:    hi.PlatformVersion,
		KernelArch: hi.KernelArch,
		UptimeSec:  hi.Uptime,
	}
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		out.CPUModel = infos[0].ModelName
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out.MemoryTotal = fmt.Sprintf("%.2f GB", float64(vm.Total)/(1024*1024*1024))
	}
	return out, nil
}

// Interfaces lists every network interface with its addresses and state.
func Interfaces(ctx context.Context) (map[string]InterfaceDetail, error) {
	list, err := gnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]InterfaceDetail, len(list))
	for _, ifc := range list {
		out[ifc.Name] = toDetail(ifc)
	}
	return out, nil
}

// InterfaceByName returns one interface or ErrInterfaceNotFound.
func InterfaceByName(ctx context.Context, name string) (InterfaceDetail, error) {
	list, err := gnet.InterfacesWithContext(ctx)
	if err != nil {
		return InterfaceDetail{}, err
	}
	for _, ifc := range list {
		if ifc.Name == name {
			return toDetail(ifc), nil
		}
	}
	return InterfaceDetail{}, ErrInterfaceNotFound
}

func toDetail(ifc gnet.InterfaceStat) InterfaceDetail {
	d := InterfaceDetail{
		HardwareAddr: ifc.HardwareAddr,
		MTU:          ifc.MTU,
		Flags:        ifc.Flags,
	}
	for _, f := range ifc.Flags {
		if f == "up" {
			d.IsUp = true
		}
	}
	for _, a := range ifc.Addrs {
		d.Addresses = append(d.Addresses, Address{Address: a.Addr})
	}
	return d
}

// Hostname returns the host's current name.
func Hostname() (string, error) {
	return os.Hostname()
}

// Clock reports local time, date and zone with its UTC offset, e.g.
// "CET (+01:00)".
func Clock() ClockDetails {
	now := time.Now()
	zone, offset := now.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return ClockDetails{
		Time: now.Format("15:04:05"),
		Date: now.Format("2006-01-02"),
		Zone: fmt.Sprintf("%s (%s%02d:%02d)", zone, sign, offset/3600, (offset%3600)/60),
	}
}
