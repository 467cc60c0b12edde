package cdpdom

// Document-level functions run in the isolated world with no receiver.
const (
	urlJS   = `function() { return location.href; }`
	titleJS = `function() { return document.title; }`
	bodyJS  = `function() { return document.body || null; }`

	querySelectorJS = `function(sel) { return document.querySelector(sel); }`
	countJS         = `function(sel) { return document.querySelectorAll(sel).length; }`
	nthJS           = `function(sel, i) { return document.querySelectorAll(sel)[i] || null; }`

	findByTextJS = `function(sel, needle) {
	needle = needle.toLowerCase();
	var nodes = document.querySelectorAll(sel);
	for (var i = 0; i < nodes.length; i++) {
		var text = String(nodes[i].innerText || nodes[i].textContent || '').trim().toLowerCase();
		if (text.indexOf(needle) !== -1) {
			return nodes[i];
		}
	}
	return null;
}`

	navigateJS = `function(url) { location.href = url; }`
	scrollByJS = `function(dy) { window.scrollBy(0, dy); }`
)

// Element functions run with the element as receiver.
const (
	describeJS = `function() {
	var el = this, tag = el.tagName.toLowerCase(), attrs = {};
	for (var i = 0; i < el.attributes.length; i++) {
		attrs[el.attributes[i].name] = el.attributes[i].value;
	}
	var info = {
		tag: tag,
		attrs: attrs,
		value: '',
		href: '',
		type: '',
		isTextControl: tag === 'input' || tag === 'textarea',
		isContentEditable: !!el.isContentEditable,
		hasChildren: el.firstChild !== null,
		sameTagIndex: 0,
		sameTagCount: 0
	};
	if (tag === 'input' || tag === 'textarea' || tag === 'select' || tag === 'button' || tag === 'option') {
		info.value = el.value == null ? '' : String(el.value);
	}
	if (tag === 'input' || tag === 'textarea' || tag === 'select') {
		info.type = String(el.type || '');
	}
	if ((tag === 'a' || tag === 'area') && el.hasAttribute('href')) {
		info.href = el.href;
	}
	var parent = el.parentNode;
	if (parent) {
		for (var c = parent.firstElementChild; c; c = c.nextElementSibling) {
			if (c.tagName !== el.tagName) continue;
			info.sameTagCount++;
			if (c === el) info.sameTagIndex = info.sameTagCount;
		}
	}
	return info;
}`

	innerTextJS      = `function() { return String(this.innerText != null ? this.innerText : (this.textContent || '')); }`
	parentJS         = `function() { return this.parentElement || null; }`
	closestJS        = `function(sel) { return this.closest(sel); }`
	elemQueryJS      = `function(sel) { return this.querySelector(sel); }`
	scrollIntoViewJS = `function() { this.scrollIntoView({block: 'center', inline: 'nearest'}); }`
	clickJS          = `function() { this.click(); }`
	focusJS          = `function() { this.focus(); }`
	selectTextJS     = `function() { if (typeof this.select === 'function') this.select(); }`
	setTextJS        = `function(text) { this.textContent = text; }`

	frameBodyJS = `function() {
	try {
		var doc = this.contentDocument;
		return doc && doc.body ? doc.body : null;
	} catch (e) {
		return null;
	}
}`

	selectContentsJS = `function() {
	var doc = this.ownerDocument, range = doc.createRange();
	range.selectNodeContents(this);
	var sel = doc.getSelection();
	sel.removeAllRanges();
	sel.addRange(range);
}`

	execCommandJS = `function(command, value) { return !!this.ownerDocument.execCommand(command, false, value); }`

	dispatchInputJS = `function(ev) {
	var view = this.ownerDocument.defaultView;
	return this.dispatchEvent(new view.InputEvent(ev.type, {
		inputType: ev.inputType,
		data: ev.data === '' ? null : ev.data,
		bubbles: true,
		cancelable: ev.cancelable,
		composed: true
	}));
}`

	dispatchEventJS = `function(type) {
	var view = this.ownerDocument.defaultView;
	this.dispatchEvent(new view.Event(type, {bubbles: true}));
}`

	dispatchKeyJS = `function(ev) {
	var view = this.ownerDocument.defaultView;
	this.dispatchEvent(new view.KeyboardEvent(ev.type, {
		key: ev.key,
		code: ev.code,
		keyCode: ev.keyCode,
		which: ev.keyCode,
		bubbles: true,
		cancelable: true
	}));
}`

	// The prototype setter keeps frameworks that track the value property
	// in sync with the new value.
	setValueJS = `function(value) {
	var desc = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(this), 'value');
	if (desc && desc.set) {
		desc.set.call(this, value);
	} else {
		this.value = value;
	}
}`

	requestSubmitJS = `function() {
	if (typeof this.requestSubmit === 'function') {
		this.requestSubmit();
	} else {
		this.submit();
	}
}`
)
