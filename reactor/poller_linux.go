//go:build linux
// +build linux

// File: reactor/poller_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux epoll(7)-backed Poller. Level-triggered by default: a Channel
// with read interest stays ready until the caller actually drains the fd,
// matching the read-until-EAGAIN pattern used throughout netsrv.

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const maxEpollEvents = 256

type epollPoller struct {
	epfd     int
	channels map[int]*Channel
	evbuf    []unix.EpollEvent
}

// NewPoller constructs the platform Poller. On Linux this is epoll.
func NewPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &epollPoller{
		epfd:     epfd,
		channels: make(map[int]*Channel),
		evbuf:    make([]unix.EpollEvent, maxEpollEvents),
	}, nil
}

func toEpollEvents(f Flag) uint32 {
	var e uint32
	if f&FlagRead != 0 {
		e |= unix.EPOLLIN
	}
	if f&FlagWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func fromEpollEvents(e uint32) Flag {
	var f Flag
	if e&unix.EPOLLIN != 0 {
		f |= FlagRead
	}
	if e&unix.EPOLLOUT != 0 {
		f |= FlagWrite
	}
	if e&(unix.EPOLLHUP) != 0 && e&unix.EPOLLIN == 0 {
		f |= FlagClose
	}
	if e&(unix.EPOLLERR) != 0 {
		f |= FlagError
	}
	return f
}

func (p *epollPoller) Update(ch *Channel) error {
	fd := ch.FD()
	ev := unix.EpollEvent{Events: toEpollEvents(ch.Events()), Fd: int32(fd)}

	switch pollerIndex(ch.Index()) {
	case indexNew, indexDeleted:
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			return fmt.Errorf("reactor: epoll_ctl add: %w", err)
		}
		ch.SetIndex(int(indexAdded))
		p.channels[fd] = ch
	default:
		if ch.IsNone() {
			if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
				return fmt.Errorf("reactor: epoll_ctl del: %w", err)
			}
			ch.SetIndex(int(indexDeleted))
			delete(p.channels, fd)
			return nil
		}
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
			return fmt.Errorf("reactor: epoll_ctl mod: %w", err)
		}
	}
	return nil
}

func (p *epollPoller) Remove(ch *Channel) error {
	fd := ch.FD()
	if pollerIndex(ch.Index()) == indexAdded {
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
			return fmt.Errorf("reactor: epoll_ctl del: %w", err)
		}
	}
	delete(p.channels, fd)
	ch.SetIndex(int(indexNew))
	return nil
}

func (p *epollPoller) Poll(timeoutMs int, dst []*Channel) ([]*Channel, error) {
	n, err := unix.EpollWait(p.epfd, p.evbuf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, fmt.Errorf("reactor: epoll_wait: %w", err)
	}
	for i := 0; i < n; i++ {
		fd := int(p.evbuf[i].Fd)
		ch, ok := p.channels[fd]
		if !ok {
			continue
		}
		ch.SetRevents(fromEpollEvents(p.evbuf[i].Events))
		dst = append(dst, ch)
	}
	return dst, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
